package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/recordsync/internal/remote"
)

type pageResult struct {
	records []*remote.Record
	next    *remote.Cursor
	err     error
}

// runPage adds op and waits for its completion.
func runPage(ctx context.Context, db remote.Database, op *remote.QueryOperation) pageResult {
	var (
		mu  sync.Mutex
		res pageResult
	)
	done := make(chan struct{})
	op.RecordFetched = func(r *remote.Record) {
		mu.Lock()
		res.records = append(res.records, r)
		mu.Unlock()
	}
	op.QueryCompleted = func(next *remote.Cursor, err error) {
		mu.Lock()
		res.next = next
		res.err = err
		mu.Unlock()
		close(done)
	}
	Expect(db.Add(ctx, op)).To(Succeed())
	Eventually(done, 2*time.Second).Should(BeClosed())
	mu.Lock()
	defer mu.Unlock()
	return res
}

var _ = Describe("Client", func() {
	var (
		ctx        context.Context
		mockServer *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if mockServer != nil {
			mockServer.Close()
			mockServer = nil
		}
	})

	Describe("NewClient", func() {
		It("should reject endpoints without an http scheme", func() {
			_, err := remote.NewClient("ftp://example.com", remote.ScopePublic)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("scheme"))
		})

		It("should reject unknown scopes", func() {
			_, err := remote.NewClient("https://example.com", remote.Scope("shared"))
			Expect(err).To(HaveOccurred())
		})

		It("should report its scope", func() {
			c, err := remote.NewClient("https://example.com/", remote.ScopePrivate)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Scope()).To(Equal(remote.ScopePrivate))
		})
	})

	Describe("Add", func() {
		It("should request the first page and deliver records before completion", func() {
			var gotBody map[string]any
			var gotHeader http.Header
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/v1/public/records/query"))
				gotHeader = r.Header.Clone()
				data, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(data, &gotBody)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{
					"records": [
						{"recordType":"Note","recordName":"a","recordChangeTag":"t1","modified":"2024-05-01T10:00:00Z","fields":{"title":"first"}},
						{"recordType":"Note","recordName":"b","modified":"2024-05-01T11:00:00Z"}
					],
					"cursor": "page-2"
				}`))
			}))

			c, err := remote.NewClient(mockServer.URL, remote.ScopePublic, remote.WithToken("s3cret"))
			Expect(err).NotTo(HaveOccurred())

			op := remote.NewQueryOperation(remote.Query{RecordType: "Note", Predicate: remote.MatchAll})
			op.ResultsLimit = 150
			op.Priority = remote.PriorityUtility

			res := runPage(ctx, c, op)
			Expect(res.err).NotTo(HaveOccurred())
			Expect(res.records).To(HaveLen(2))
			Expect(res.records[0].ID).To(Equal("a"))
			Expect(res.records[0].ChangeTag).To(Equal("t1"))
			Expect(res.records[0].Fields).To(HaveKeyWithValue("title", "first"))
			Expect(res.records[1].Modified).To(Equal(time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)))
			Expect(res.next).NotTo(BeNil())
			Expect(*res.next).To(Equal(remote.Cursor("page-2")))

			Expect(gotBody).To(HaveKeyWithValue("recordType", "Note"))
			Expect(gotBody).To(HaveKeyWithValue("limit", BeNumerically("==", 150)))
			Expect(gotBody).NotTo(HaveKey("cursor"))
			Expect(gotHeader.Get("Authorization")).To(Equal("Bearer s3cret"))
			Expect(gotHeader.Get(remote.PriorityHeader)).To(Equal("background"))
			Expect(gotHeader.Get("User-Agent")).To(Equal(remote.UserAgent))
		})

		It("should send the cursor for continuation pages and report the last page", func() {
			var gotBody map[string]any
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				data, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(data, &gotBody)
				_, _ = w.Write([]byte(`{"records":[]}`))
			}))

			c, err := remote.NewClient(mockServer.URL, remote.ScopePublic)
			Expect(err).NotTo(HaveOccurred())

			res := runPage(ctx, c, remote.NewContinuationOperation("page-2"))
			Expect(res.err).NotTo(HaveOccurred())
			Expect(res.records).To(BeEmpty())
			Expect(res.next).To(BeNil())
			Expect(gotBody).To(HaveKeyWithValue("cursor", "page-2"))
		})

		It("should reject an operation that was already added", func() {
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"records":[]}`))
			}))
			c, err := remote.NewClient(mockServer.URL, remote.ScopePublic)
			Expect(err).NotTo(HaveOccurred())

			op := remote.NewQueryOperation(remote.Query{RecordType: "Note", Predicate: remote.MatchAll})
			_ = runPage(ctx, c, op)
			Expect(c.Add(ctx, op)).To(MatchError(remote.ErrOperationReused))
		})

		It("should reject an empty operation", func() {
			c, err := remote.NewClient("https://example.com", remote.ScopePublic)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Add(ctx, &remote.QueryOperation{})).To(MatchError(remote.ErrInvalidOperation))
		})

		It("should map rate limiting to a remote error with the suggested delay", func() {
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "4")
				w.WriteHeader(http.StatusTooManyRequests)
			}))
			c, err := remote.NewClient(mockServer.URL, remote.ScopePublic)
			Expect(err).NotTo(HaveOccurred())

			res := runPage(ctx, c, remote.NewContinuationOperation("x"))
			var remoteErr *remote.Error
			Expect(res.err).To(BeAssignableToTypeOf(remoteErr))
			remoteErr = res.err.(*remote.Error)
			Expect(remoteErr.Code).To(Equal(remote.CodeRequestRateLimited))
			Expect(remoteErr.RetryAfter).To(Equal(4 * time.Second))
			Expect(res.records).To(BeEmpty())
		})

		It("should report transport failures as network failures", func() {
			mockServer = httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			endpoint := mockServer.URL
			mockServer.Close()
			mockServer = nil

			c, err := remote.NewClient(endpoint, remote.ScopePublic)
			Expect(err).NotTo(HaveOccurred())
			res := runPage(ctx, c, remote.NewContinuationOperation("x"))
			Expect(remote.CodeOf(res.err)).To(Equal(remote.CodeNetworkFailure))
		})

		It("should return the context error when cancelled", func() {
			// The handler must not outlive the test, or closing the server hangs.
			release := make(chan struct{})
			defer close(release)
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				select {
				case <-r.Context().Done():
				case <-release:
				}
			}))
			c, err := remote.NewClient(mockServer.URL, remote.ScopePublic)
			Expect(err).NotTo(HaveOccurred())

			cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			res := runPage(cctx, c, remote.NewContinuationOperation("x"))
			Expect(res.err).To(MatchError(context.DeadlineExceeded))
		})
	})

	Describe("SaveSubscription", func() {
		It("should upsert the subscription by ID", func() {
			var gotPath string
			var gotBody map[string]any
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPut))
				gotPath = r.URL.Path
				data, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(data, &gotBody)
				w.WriteHeader(http.StatusNoContent)
			}))
			c, err := remote.NewClient(mockServer.URL, remote.ScopePrivate)
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			c.SaveSubscription(ctx, &remote.Subscription{
				ID:             "recordsync-private-Note",
				RecordType:     "Note",
				Predicate:      remote.MatchAll,
				Options:        remote.FiresOnRecordCreation | remote.FiresOnRecordUpdate | remote.FiresOnRecordDeletion,
				SilentDelivery: true,
			}, func(err error) { done <- err })

			var saveErr error
			Eventually(done, 2*time.Second).Should(Receive(&saveErr))
			Expect(saveErr).NotTo(HaveOccurred())
			Expect(gotPath).To(Equal("/v1/private/subscriptions/recordsync-private-Note"))
			Expect(gotBody).To(HaveKeyWithValue("silentDelivery", true))
			Expect(gotBody["firesOn"]).To(ConsistOf("create", "update", "delete"))
		})

		It("should report failures to the callback", func() {
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			}))
			c, err := remote.NewClient(mockServer.URL, remote.ScopePublic)
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			c.SaveSubscription(ctx, &remote.Subscription{ID: "s", RecordType: "Note"}, func(err error) { done <- err })
			var saveErr error
			Eventually(done, 2*time.Second).Should(Receive(&saveErr))
			Expect(remote.CodeOf(saveErr)).To(Equal(remote.CodePermissionFailure))
		})
	})

	Describe("ServerInfo", func() {
		It("should decode the API version", func() {
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/v1/info"))
				_, _ = w.Write([]byte(`{"apiVersion":"1.4.0"}`))
			}))
			c, err := remote.NewClient(mockServer.URL, remote.ScopePublic)
			Expect(err).NotTo(HaveOccurred())

			info, err := c.ServerInfo(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.APIVersion).To(Equal("1.4.0"))
		})
	})

	Describe("Record", func() {
		It("should list field keys in order", func() {
			r := &remote.Record{Fields: map[string]any{"b": 1, "a": 2, "c": 3}}
			Expect(r.Keys()).To(Equal([]string{"a", "b", "c"}))
		})
	})

	Describe("SubscriptionOption", func() {
		It("should name the enabled triggers", func() {
			o := remote.FiresOnRecordCreation | remote.FiresOnRecordDeletion
			Expect(o.Has(remote.FiresOnRecordUpdate)).To(BeFalse())
			Expect(o.Names()).To(Equal([]string{"create", "delete"}))
		})
	})
})
