package handlers_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/PratikDhanave/repo-activity-service/internal/auth"
	"github.com/PratikDhanave/repo-activity-service/internal/handlers"
	"github.com/PratikDhanave/repo-activity-service/internal/ingest"
	"github.com/PratikDhanave/repo-activity-service/internal/logger"
	"github.com/PratikDhanave/repo-activity-service/internal/models"
	"github.com/PratikDhanave/repo-activity-service/internal/normalize"
	"github.com/PratikDhanave/repo-activity-service/internal/store"
)

const testSecret = "test_secret"

type countingBackup struct {
	calls atomic.Int32
}

func (b *countingBackup) Trigger() { b.calls.Add(1) }

type failingIngester struct{}

func (failingIngester) Ingest(context.Context, string, []byte) (ingest.Result, error) {
	return ingest.Result{}, errors.New("pq: password authentication failed for user \"events\"")
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func post(router *gin.Engine, eventType string, payload any, signed bool) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if eventType != "" {
		req.Header.Set(handlers.EventHeader, eventType)
	}
	req.Header.Set(handlers.DeliveryHeader, "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	if signed {
		req.Header.Set(auth.SignatureHeader, sign(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
	return out
}

var pushPayload = map[string]any{
	"ref":         "refs/heads/main",
	"before":      "abc123",
	"after":       "def456",
	"commits":     []any{map[string]any{"id": "def456", "message": "Test commit message"}},
	"head_commit": map[string]any{"id": "def456", "message": "Test commit message"},
	"repository":  map[string]any{"name": "action-repo", "full_name": "user/action-repo"},
	"sender":      map[string]any{"login": "testuser"},
}

func pullRequestPayload(action string, merged bool) map[string]any {
	return map[string]any{
		"action": action,
		"number": 1,
		"pull_request": map[string]any{
			"state":  "open",
			"merged": merged,
			"head":   map[string]any{"ref": "feature-x", "sha": "abc123"},
			"base":   map[string]any{"ref": "main", "sha": "def456"},
		},
		"sender": map[string]any{"login": "testuser"},
	}
}

var _ = Describe("Webhook route", func() {
	var (
		router *gin.Engine
		st     *store.MemoryStore
		backup *countingBackup
		logBuf *bytes.Buffer
	)

	setup := func(secret string) {
		gin.SetMode(gin.TestMode)
		logBuf = &bytes.Buffer{}
		slog.SetDefault(slog.New(logger.NewTraceHandler(slog.NewJSONHandler(logBuf, nil))))

		st = store.NewMemoryStore()
		backup = &countingBackup{}
		clock := func() time.Time { return time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC) }
		pipeline := ingest.NewPipeline(normalize.NewWithClock(clock), st, backup)

		router = gin.New()
		handlers.RegisterWebhookRoutes(router, auth.NewVerifier(secret), pipeline)
	}

	stored := func() []models.Event {
		all, err := st.All(context.Background())
		Expect(err).NotTo(HaveOccurred())
		return all
	}

	Context("with a secret configured", func() {
		BeforeEach(func() { setup(testSecret) })

		It("stores a signed push and returns its id and action", func() {
			w := post(router, "push", pushPayload, true)

			Expect(w.Code).To(Equal(http.StatusOK))
			body := decodeBody(w)
			Expect(body["message"]).To(Equal("Event processed successfully"))
			Expect(body["action"]).To(Equal("PUSH"))
			Expect(body["event_id"]).NotTo(BeEmpty())

			events := stored()
			Expect(events).To(HaveLen(1))
			Expect(events[0].ID).To(Equal(body["event_id"]))
			Expect(events[0].Author).To(Equal("testuser"))
			Expect(*events[0].ToBranch).To(Equal("main"))
			Expect(*events[0].RequestID).To(Equal("def456"))
			Expect(events[0].FromBranch).To(BeNil())
			Expect(backup.calls.Load()).To(Equal(int32(1)))

			Expect(logBuf.String()).To(ContainSubstring(`"delivery_id":"72d3162e-cc78-11e3-81ab-4c9367dc0958"`))
		})

		It("classifies an opened pull request", func() {
			w := post(router, "pull_request", pullRequestPayload("opened", false), true)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(w)["action"]).To(Equal("PULL_REQUEST"))
			ev := stored()[0]
			Expect(*ev.FromBranch).To(Equal("feature-x"))
			Expect(*ev.ToBranch).To(Equal("main"))
		})

		It("classifies a merged pull request", func() {
			w := post(router, "pull_request", pullRequestPayload("closed", true), true)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(w)["action"]).To(Equal("MERGE"))
		})

		It("acknowledges a rejected pull request without storing it", func() {
			w := post(router, "pull_request", pullRequestPayload("closed", false), true)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(w)["message"]).To(ContainSubstring("no valid action"))
			Expect(stored()).To(BeEmpty())
			Expect(backup.calls.Load()).To(BeZero())
		})

		It("acknowledges unsupported event types", func() {
			w := post(router, "issues", map[string]any{"test": "data"}, true)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(w)["message"]).To(ContainSubstring("not supported"))
			Expect(stored()).To(BeEmpty())
		})

		It("rejects a missing signature with 400", func() {
			w := post(router, "push", pushPayload, false)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(stored()).To(BeEmpty())
		})

		It("rejects a bad signature with 401", func() {
			req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`{"ref":"refs/heads/main"}`))
			req.Header.Set(handlers.EventHeader, "push")
			req.Header.Set(auth.SignatureHeader, "sha256=wrong")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(stored()).To(BeEmpty())
		})

		It("surfaces validation failures with 400", func() {
			payload := map[string]any{"ref": "refs/heads/main", "commits": []any{}, "sender": map[string]any{"login": "testuser"}}
			w := post(router, "push", payload, true)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(w)["error"]).To(ContainSubstring("request_id"))
			Expect(stored()).To(BeEmpty())
		})

		It("stores duplicate deliveries twice", func() {
			Expect(post(router, "push", pushPayload, true).Code).To(Equal(http.StatusOK))
			Expect(post(router, "push", pushPayload, true).Code).To(Equal(http.StatusOK))

			Expect(stored()).To(HaveLen(2))
		})
	})

	Context("without a secret", func() {
		BeforeEach(func() { setup("") })

		It("accepts unsigned deliveries", func() {
			w := post(router, "push", pushPayload, false)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(stored()).To(HaveLen(1))
		})

		It("rejects a body that is not a JSON object", func() {
			req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`[`))
			req.Header.Set(handlers.EventHeader, "push")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("masks internal failures behind a generic 500", func() {
		gin.SetMode(gin.TestMode)
		buf := &bytes.Buffer{}
		slog.SetDefault(slog.New(slog.NewJSONHandler(buf, nil)))

		r := gin.New()
		handlers.RegisterWebhookRoutes(r, auth.NewVerifier(""), failingIngester{})
		w := post(r, "push", pushPayload, false)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(decodeBody(w)["error"]).To(Equal(ingest.InternalErrorMessage))
		Expect(w.Body.String()).NotTo(ContainSubstring("password"))
		Expect(buf.String()).To(ContainSubstring("password authentication failed"))
	})
})
