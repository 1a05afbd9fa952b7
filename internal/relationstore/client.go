package relationstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
)

// permitGauge reports the request-permit semaphore's occupancy (SPEC_FULL
// §2 DOMAIN STACK: "permit-semaphore occupancy gauge"), following the
// teacher's package-level-meter-plus-init() pattern
// (internal/storage/dolt/store.go's doltMetrics).
var permitGauge metric.Int64ObservableGauge

func init() {
	m := otel.Meter("github.com/lakekeeper/catalog-authz/relationstore")
	permitGauge, _ = m.Int64ObservableGauge("catalogauthz.rsc.permits_in_use",
		metric.WithDescription("Request-permit semaphore occupancy across all RSC clients"),
		metric.WithUnit("{permit}"))
}

// MaxTuplesPerWrite is the tuple store's transactional batch limit (§4.1, §6).
const MaxTuplesPerWrite = 100

// DefaultMaxConcurrentRequests is the request-permit semaphore's default
// width (§4.1, §6).
const DefaultMaxConcurrentRequests = 50

// DefaultPageSize is the store's default read page size (§6).
const DefaultPageSize = 100

// Backend is the low-level contract a concrete tuple-store driver must
// satisfy. Client wraps a Backend with the permit semaphore and the
// batch-size/error-translation policy of §4.1; no production Backend
// ships in this module (the tuple store itself is an external
// collaborator, §1) — InMemoryBackend is the reference implementation
// used by tests and by a single-process deployment.
type Backend interface {
	WriteBatch(ctx context.Context, writes, deletes []Tuple) error
	ReadPage(ctx context.Context, key TupleKey, pageSize int, pageToken string, consistency Consistency) (tuples []Tuple, nextToken string, err error)
	Check(ctx context.Context, user, relation, object string) (bool, error)
	ListObjects(ctx context.Context, objectType, relation, user string) ([]string, error)
}

// Client is the Relation Store Client. Every method acquires one permit
// from the shared semaphore for the duration of its single Backend call
// and releases it before returning — acquisition must not outlive the
// response, and callers that fan out must re-acquire per sub-call (§4.1, §5).
type Client struct {
	backend Backend
	permits *semaphore.Weighted
	pageSz  int
	inUse   atomic.Int64
}

// NewClient wraps backend with a permit semaphore of the given width
// (DefaultMaxConcurrentRequests if maxConcurrent <= 0). The semaphore's
// occupancy is published as an observable gauge for the lifetime of the
// returned Client; callers that discard a Client should not keep
// constructing new ones in a hot loop.
func NewClient(backend Backend, maxConcurrent, pageSize int) *Client {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRequests
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	c := &Client{backend: backend, permits: semaphore.NewWeighted(int64(maxConcurrent)), pageSz: pageSize}
	if permitGauge != nil {
		m := otel.Meter("github.com/lakekeeper/catalog-authz/relationstore")
		_, _ = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(permitGauge, c.inUse.Load())
			return nil
		}, permitGauge)
	}
	return c
}

// PageSize returns the configured default page size.
func (c *Client) PageSize() int { return c.pageSz }

func (c *Client) acquire(ctx context.Context) error {
	if err := c.permits.Acquire(ctx, 1); err != nil {
		return err
	}
	c.inUse.Add(1)
	return nil
}

func (c *Client) release() {
	c.inUse.Add(-1)
	c.permits.Release(1)
}

// backendRetryMaxElapsed bounds how long withRetry keeps retrying a
// transient backend failure before giving up.
const backendRetryMaxElapsed = 2 * time.Second

func newBackendRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = backendRetryMaxElapsed
	return bo
}

// withRetry retries fn against the backend's transient-failure policy
// (§4.1: ErrStoreUnavailable and ErrConcurrentUpdate are retryable, every
// other error stops the retry immediately), the way the teacher's
// DoltStore.withRetry wraps a server-mode backend call.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	return backoff.Retry(func() error {
		if err := fn(); err != nil {
			if !catalogerr.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}, backoff.WithContext(newBackendRetryBackoff(), ctx))
}

// Write performs a single transactional batch. An empty batch is a no-op.
// |writes|+|deletes| > MaxTuplesPerWrite fails with ErrTooManyWrites.
func (c *Client) Write(ctx context.Context, writes, deletes []Tuple) error {
	if len(writes)+len(deletes) == 0 {
		return nil
	}
	if len(writes)+len(deletes) > MaxTuplesPerWrite {
		return catalogerr.Wrapf(catalogerr.ErrTooManyWrites, "write batch of %d tuples", len(writes)+len(deletes))
	}
	if err := c.acquire(ctx); err != nil {
		return catalogerr.Wrap("relationstore.Write", err)
	}
	defer c.release()

	if err := c.withRetry(ctx, func() error { return c.backend.WriteBatch(ctx, writes, deletes) }); err != nil {
		return catalogerr.Wrap("relationstore.Write", err)
	}
	return nil
}

// Read returns up to pageSize tuples matching key.
func (c *Client) Read(ctx context.Context, key TupleKey, pageSize int, pageToken string, consistency Consistency) ([]Tuple, string, error) {
	if key.Object == "" {
		return nil, "", catalogerr.NewValidation("object", "object must name at least a type")
	}
	if pageSize <= 0 {
		pageSize = c.pageSz
	}
	if err := c.acquire(ctx); err != nil {
		return nil, "", catalogerr.Wrap("relationstore.Read", err)
	}
	defer c.release()

	var tuples []Tuple
	var next string
	err := c.withRetry(ctx, func() (err error) {
		tuples, next, err = c.backend.ReadPage(ctx, key, pageSize, pageToken, consistency)
		return err
	})
	if err != nil {
		return nil, "", catalogerr.Wrap("relationstore.Read", err)
	}
	return tuples, next, nil
}

// ReadAllPages iterates pages until the continuation token is empty or
// maxPages is reached (0 = unbounded).
func (c *Client) ReadAllPages(ctx context.Context, key TupleKey, pageSize, maxPages int) ([]Tuple, error) {
	var all []Tuple
	token := ""
	for page := 0; maxPages <= 0 || page < maxPages; page++ {
		tuples, next, err := c.Read(ctx, key, pageSize, token, MinimizeLatency)
		if err != nil {
			return all, err
		}
		all = append(all, tuples...)
		if next == "" {
			break
		}
		token = next
	}
	return all, nil
}

// Check always runs at MinimizeLatency (§4.1).
func (c *Client) Check(ctx context.Context, user, relation, object string) (bool, error) {
	if err := c.acquire(ctx); err != nil {
		return false, catalogerr.Wrap("relationstore.Check", err)
	}
	defer c.release()

	var ok bool
	err := c.withRetry(ctx, func() (err error) {
		ok, err = c.backend.Check(ctx, user, relation, object)
		return err
	})
	if err != nil {
		return false, catalogerr.Wrap("relationstore.Check", err)
	}
	return ok, nil
}

// ListObjects returns all objects of objectType for which relation
// evaluates to true for user, bounded by the store's internal limit.
func (c *Client) ListObjects(ctx context.Context, objectType, relation, user string) ([]string, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, catalogerr.Wrap("relationstore.ListObjects", err)
	}
	defer c.release()

	var objs []string
	err := c.withRetry(ctx, func() (err error) {
		objs, err = c.backend.ListObjects(ctx, objectType, relation, user)
		return err
	})
	if err != nil {
		return nil, catalogerr.Wrap("relationstore.ListObjects", err)
	}
	return objs, nil
}

// tupleID formats a "type:id" identifier.
func tupleID(kindOrType, id string) string {
	return fmt.Sprintf("%s:%s", kindOrType, id)
}

// TupleID is the exported form of tupleID for callers outside the package.
func TupleID(kindOrType, id string) string { return tupleID(kindOrType, id) }

// UsersetID formats a "type:id#relation" userset reference.
func UsersetID(kindOrType, id, relation string) string {
	return fmt.Sprintf("%s:%s#%s", kindOrType, id, relation)
}
