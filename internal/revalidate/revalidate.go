package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"recollect-worker/internal/config"
	"recollect-worker/internal/logging"
	"recollect-worker/internal/metrics"
	"recollect-worker/internal/telemetry"
)

// Locker claims a key for a period so that only one instance acts on it
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker implements Locker with SET NX
type RedisLocker struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(rdb redis.Cmdable) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "recollect:revalidate:"}
}

// Acquire claims key until ttl expires. The key is never released early so a
// burst of mutations on one page only revalidates once per ttl.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, l.prefix+key, time.Now().Unix(), ttl).Result()
}

// Revalidator asks the web application to rebuild cached public pages
type Revalidator struct {
	cfg      config.RevalidateConfig
	client   *retryablehttp.Client
	registry *singleflight.Group
	locker   Locker
	metrics  *metrics.Metrics
}

// New creates a Revalidator. Calls for the same path that overlap share one
// request through registry; pass nil for a private registry. locker may be
// nil.
func New(cfg config.RevalidateConfig, registry *singleflight.Group, locker Locker, m *metrics.Metrics) *Revalidator {
	if registry == nil {
		registry = &singleflight.Group{}
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	client := retryablehttp.NewClient()
	client.RetryMax = attempts - 1
	client.RetryWaitMin = cfg.InitialBackoff
	client.RetryWaitMax = cfg.MaxBackoff
	client.HTTPClient.Timeout = cfg.AttemptTimeout
	client.Logger = logging.RetryableHTTPLogger{Entry: logrus.WithField("component", "revalidate")}
	client.CheckRetry = retryOnAnyFailure

	return &Revalidator{cfg: cfg, client: client, registry: registry, locker: locker, metrics: m}
}

// every non-2xx is worth another attempt; the page endpoint has no
// permanent client errors we could act on
func retryOnAnyFailure(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode < 200 || resp.StatusCode > 299, nil
}

// PublicCategoryPath is the path of a user's public category page
func PublicCategoryPath(userName, slug string) string {
	return "/public/" + url.PathEscape(userName) + "/" + url.PathEscape(slug)
}

// RevalidatePublicCategoryPage revalidates /public/<user>/<slug>. It never
// fails the caller: the result only reports whether the page was refreshed.
func (r *Revalidator) RevalidatePublicCategoryPage(ctx context.Context, userName, slug, reason string) bool {
	return r.Revalidate(ctx, PublicCategoryPath(userName, slug), reason)
}

// Revalidate refreshes one path
func (r *Revalidator) Revalidate(ctx context.Context, path, reason string) bool {
	if r.cfg.URL == "" {
		logrus.Debugf("Revalidation of %s skipped: no endpoint configured", path)
		return false
	}

	v, _, shared := r.registry.Do(path, func() (interface{}, error) {
		return r.revalidate(ctx, path, reason), nil
	})
	if shared {
		logrus.Debugf("Revalidation of %s shared with an in-flight call", path)
	}
	return v.(bool)
}

func (r *Revalidator) revalidate(ctx context.Context, path, reason string) bool {
	if r.locker != nil {
		ok, err := r.locker.Acquire(ctx, path, r.cfg.LockTTL)
		switch {
		case err != nil:
			logrus.Warnf("Revalidation lock for %s unavailable, continuing: %v", path, err)
		case !ok:
			logrus.Debugf("Revalidation of %s already claimed by another instance", path)
			r.metrics.Revalidated("deduplicated")
			return true
		}
	}

	body, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return false
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, body)
	if err != nil {
		logrus.Errorf("Failed to build revalidation request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Secret)

	resp, err := r.client.Do(req)
	if err != nil {
		err = fmt.Errorf("revalidation of %s failed (%s): %w", path, reason, err)
		logrus.Error(err)
		telemetry.Capture(err, map[string]string{"operation": "revalidate", "path": path})
		r.metrics.Revalidated("failed")
		return false
	}
	resp.Body.Close()

	logrus.Infof("Revalidated %s (%s)", path, reason)
	r.metrics.Revalidated("ok")
	return true
}
