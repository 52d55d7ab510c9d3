package loadtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scalefilter/internal/adapters/http/api"
	service "github.com/okian/scalefilter/internal/app"
	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/logger"
)

func newTestServer(ctx context.Context, opts ...service.Option) (*httptest.Server, *service.Service) {
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, api.DefaultMaxLimit).Register(ctx, mux)
	return httptest.NewServer(mux), svc
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:          url,
		NumBatches:       20,
		ReadingsPerBatch: 5,
		DuplicateRatio:   0.5,
		Workers:          4,
		Timeout:          5 * time.Second,
		SettleTimeout:    5 * time.Second,
	}
}

func TestRun(t *testing.T) {
	_ = logger.Init(logger.WithOutput(os.Stderr))

	Convey("Given a running scale service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		Convey("When the filter is enabled", func() {
			srv, svc := newTestServer(ctx,
				service.WithWorkerCount(2),
				service.WithFilterConfig(true, "2.5"))
			defer srv.Close()
			defer func() { _ = svc.Stop(ctx) }()

			cfg := testConfig(srv.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "batches.json")
			stats, err := Run(ctx, cfg)

			So(err, ShouldBeNil)
			So(stats.Accepted, ShouldEqual, 20)
			So(stats.Duplicates, ShouldEqual, 10)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.ReadingsVerified, ShouldEqual, 100)

			_, statErr := os.Stat(cfg.OutputFile)
			So(statErr, ShouldBeNil)
		})

		Convey("When the filter is disabled", func() {
			srv, svc := newTestServer(ctx, service.WithWorkerCount(2))
			defer srv.Close()
			defer func() { _ = svc.Stop(ctx) }()

			cfg := testConfig(srv.URL)
			cfg.DuplicateRatio = 0
			stats, err := Run(ctx, cfg)

			So(err, ShouldBeNil)
			So(stats.Duplicates, ShouldEqual, 0)
			So(stats.ReadingsVerified, ShouldEqual, 100)
		})

		Convey("When the service is unreachable", func() {
			srv, svc := newTestServer(ctx)
			srv.Close()
			_ = svc.Stop(ctx)

			_, err := Run(ctx, testConfig(srv.URL))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestVerifyReadings(t *testing.T) {
	Convey("Given expected readings scaled by 10", t, func() {
		ctx := context.Background()
		r := model.NewReading("pump",
			model.NewDatapoint("count", model.IntegerValue(3)),
			model.NewDatapoint("state", model.StringValue("on")))
		expected, err := expectedReadings([]Batch{{ID: "b1", Readings: model.Batch{r}}},
			FilterSettings{Enable: true, Factor: 10})
		So(err, ShouldBeNil)

		Convey("The submitted batch is left unscaled", func() {
			So(r.Datapoints[0].Value.Int(), ShouldEqual, 3)
			So(expected[r.UUID].Datapoints[0].Value.Int(), ShouldEqual, 30)
		})

		Convey("A matching reading verifies", func() {
			got := &model.Reading{UUID: r.UUID, AssetCode: "pump", Datapoints: []*model.Datapoint{
				model.NewDatapoint("count", model.IntegerValue(30)),
				model.NewDatapoint("state", model.StringValue("on")),
			}}
			n, err := verifyReadings(ctx, expected, []*model.Reading{got})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("A reading scaled twice is reported", func() {
			got := &model.Reading{UUID: r.UUID, AssetCode: "pump", Datapoints: []*model.Datapoint{
				model.NewDatapoint("count", model.IntegerValue(300)),
				model.NewDatapoint("state", model.StringValue("on")),
			}}
			_, err := verifyReadings(ctx, expected, []*model.Reading{got})
			So(err, ShouldNotBeNil)
		})

		Convey("Readings from another run are rejected", func() {
			other := model.NewReading("fan", model.NewDatapoint("x", model.IntegerValue(1)))
			_, err := verifyReadings(ctx, expected, []*model.Reading{other})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPickDuplicates(t *testing.T) {
	Convey("Given ten batches", t, func() {
		batches := make([]Batch, 10)

		So(pickDuplicates(batches, 0), ShouldBeEmpty)
		So(len(pickDuplicates(batches, 0.3)), ShouldEqual, 3)
		So(len(pickDuplicates(batches, 2)), ShouldEqual, 10)
	})
}
