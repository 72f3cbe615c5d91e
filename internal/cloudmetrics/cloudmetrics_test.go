package cloudmetrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/privatedrops/internal/config"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"github.com/smallbiznis/privatedrops/internal/testutil"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

func TestRefreshAndRemoteWrite(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	owner := userdomain.User{ID: node.Generate(), Email: "a@example.com", Currency: "eur", Payouts: 900, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&userdomain.User{ID: node.Generate(), Email: "b@example.com", Currency: "eur", Payouts: 100, CreatedAt: now, UpdatedAt: now}).Error)
	for i, flagged := range []bool{false, true} {
		m := mediadomain.Media{
			ID:        node.Generate(),
			Code:      []string{"code-a", "code-b"}[i],
			OwnerID:   owner.ID,
			Flagged:   flagged,
			Currency:  "eur",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if flagged {
			m.ModeratedAt = &now
		}
		require.NoError(t, db.Create(&m).Error)
	}

	var got *prompb.WriteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		req := &prompb.WriteRequest{}
		require.NoError(t, proto.Unmarshal(raw, protoadapt.MessageV2Of(req)))
		got = req
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	pusher := NewRemoteWritePusher(server.URL, "token")
	pusher.now = func() time.Time { return now }
	c := New(nil, pusher, "test")

	require.NoError(t, c.Refresh(ctx, db))
	require.NoError(t, c.Push(ctx))
	require.NotNil(t, got)

	values := map[string]float64{}
	for _, ts := range got.Timeseries {
		var name, label string
		for _, l := range ts.Labels {
			switch l.Name {
			case "__name__":
				name = l.Value
			case "state", "currency":
				label = l.Value
			}
		}
		require.Len(t, ts.Samples, 1)
		require.Equal(t, now.UnixMilli(), ts.Samples[0].Timestamp)
		values[name+"/"+label] = ts.Samples[0].Value
	}
	require.Equal(t, 2.0, values["privatedrops_users_total/"])
	require.Equal(t, 0.0, values["privatedrops_views_total/"])
	require.Equal(t, 1.0, values["privatedrops_media_total/pending"])
	require.Equal(t, 1.0, values["privatedrops_media_total/flagged"])
	require.Equal(t, 0.0, values["privatedrops_media_total/clean"])
	require.Equal(t, 1000.0, values["privatedrops_payouts_minor_total/eur"])
}

func TestPushFailsOnRejectedWrite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(nil, NewRemoteWritePusher(server.URL, ""), "test")
	c.users.Set(1)
	require.ErrorIs(t, c.Push(context.Background()), ErrRemoteWriteRejected)
}

func TestGaugeSeriesKeepsMetricLabelsOverExternal(t *testing.T) {
	c := New(nil, nil, "pod-1")
	c.users.Set(4)
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	external := []prompb.Label{{Name: "instance", Value: "ignored"}, {Name: "environment", Value: "prod"}}
	series := gaugeSeries(families, external, 1)

	var users *prompb.TimeSeries
	for i := range series {
		for _, l := range series[i].Labels {
			if l.Name == "__name__" && l.Value == "privatedrops_users_total" {
				users = &series[i]
			}
		}
	}
	require.NotNil(t, users)
	require.Equal(t, []prompb.Label{
		{Name: "__name__", Value: "privatedrops_users_total"},
		{Name: "environment", Value: "prod"},
		{Name: "instance", Value: "pod-1"},
	}, users.Labels)
	require.Equal(t, 4.0, users.Samples[0].Value)
}

func TestPushgatewayGroupsByInstance(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(nil, NewPushgatewayPusher(server.URL, "prod", "pod-1"), "pod-1")
	c.users.Set(1)
	require.NoError(t, c.Push(context.Background()))
	require.Equal(t, "/metrics/job/privatedrops/environment/prod/instance/pod-1", path)
}

func TestNewPusherDisabledWithoutUsableConfig(t *testing.T) {
	cfg := config.Config{Environment: "prod"}
	require.Nil(t, NewPusher(cfg, zap.NewNop()))

	cfg.Cloud.Metrics = config.CloudMetricsConfig{Enabled: true, Exporter: exporterRemoteWrite}
	require.Nil(t, NewPusher(cfg, zap.NewNop()))

	cfg.Cloud.Metrics.Endpoint = "http://127.0.0.1:1/api/v1/write"
	cfg.Cloud.Metrics.Exporter = "statsd"
	require.Nil(t, NewPusher(cfg, zap.NewNop()))

	cfg.Cloud.Metrics.Exporter = exporterRemoteWrite
	p, ok := NewPusher(cfg, zap.NewNop()).(*RemoteWritePusher)
	require.True(t, ok)
	require.Equal(t, []prompb.Label{{Name: "environment", Value: "prod"}}, p.external)
}

func TestNilCloudMetricsIsInert(t *testing.T) {
	var c *CloudMetrics
	require.NoError(t, c.Refresh(context.Background(), nil))
	require.NoError(t, c.Push(context.Background()))
	require.Nil(t, c.Registry())
}
