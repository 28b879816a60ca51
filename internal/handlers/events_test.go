package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/PratikDhanave/repo-activity-service/internal/handlers"
	"github.com/PratikDhanave/repo-activity-service/internal/ingest"
	"github.com/PratikDhanave/repo-activity-service/internal/models"
	"github.com/PratikDhanave/repo-activity-service/internal/store"
)

type unreachableStore struct {
	store.MemoryStore
}

func (s *unreachableStore) Query(context.Context, int) ([]models.Event, error) {
	return nil, errors.New("server selection timeout: 10.0.0.5:5432")
}

func (s *unreachableStore) Stats(context.Context, time.Time) (models.ActivityStats, error) {
	return models.ActivityStats{}, errors.New("server selection timeout: 10.0.0.5:5432")
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

var _ = Describe("Event read routes", func() {
	var (
		router *gin.Engine
		st     *store.MemoryStore
		base   time.Time
	)

	insert := func(i int, action models.Action) {
		from, to, sha := fmt.Sprintf("feature-%d", i), "main", fmt.Sprintf("sha-%d", i)
		ev := models.Event{
			Author:    fmt.Sprintf("user%d", i),
			Timestamp: models.FormatTimestamp(base.Add(time.Duration(i) * time.Minute)),
			Action:    action,
			RequestID: &sha,
			ToBranch:  &to,
		}
		if action != models.ActionPush {
			ev.FromBranch = &from
		}
		_, err := st.Insert(context.Background(), ev)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		st = store.NewMemoryStore()
		base = time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Minute)
		router = gin.New()
		handlers.RegisterEventRoutes(router, st)
	})

	It("returns an empty array when nothing is stored", func() {
		w := get(router, "/api/events")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("[]"))
	})

	It("caps /api/events at 50, newest first", func() {
		for i := 0; i < 60; i++ {
			insert(i, models.ActionPush)
		}

		w := get(router, "/api/events")
		Expect(w.Code).To(Equal(http.StatusOK))

		var events []models.Event
		Expect(json.Unmarshal(w.Body.Bytes(), &events)).To(Succeed())
		Expect(events).To(HaveLen(50))
		Expect(events[0].Author).To(Equal("user59"))
		Expect(events[49].Author).To(Equal("user10"))
		Expect(events[0].ID).NotTo(BeEmpty())
	})

	It("formats the latest 10 events", func() {
		for i := 0; i < 12; i++ {
			action := models.ActionPush
			switch i % 3 {
			case 1:
				action = models.ActionPullRequest
			case 2:
				action = models.ActionMerge
			}
			insert(i, action)
		}

		w := get(router, "/api/events/latest")
		Expect(w.Code).To(Equal(http.StatusOK))

		var summaries []models.EventSummary
		Expect(json.Unmarshal(w.Body.Bytes(), &summaries)).To(Succeed())
		Expect(summaries).To(HaveLen(10))

		Expect(summaries[0].Action).To(Equal(models.ActionMerge))
		Expect(summaries[0].Message).To(HavePrefix("user11 merged branch feature-11 to main on "))
		Expect(summaries[1].Message).To(HavePrefix("user10 submitted a pull request from feature-10 to main on "))
		Expect(summaries[2].Message).To(HavePrefix("user9 pushed to main on "))
		Expect(summaries[2].Message).To(HaveSuffix(" UTC"))
	})

	It("reports activity stats", func() {
		insert(0, models.ActionPush)
		insert(100, models.ActionPush)

		w := get(router, "/api/stats")
		Expect(w.Code).To(Equal(http.StatusOK))

		var stats models.ActivityStats
		Expect(json.Unmarshal(w.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats.TotalEvents).To(Equal(int64(2)))
		Expect(stats.RecentEventsCount).To(Equal(int64(1)))
		Expect(stats.LatestEvent).NotTo(BeNil())
	})

	It("describes the raw event shape", func() {
		w := get(router, "/api/schema")
		Expect(w.Code).To(Equal(http.StatusOK))

		var schema struct {
			Properties map[string]struct {
				Enum []string `json:"enum"`
			} `json:"properties"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &schema)).To(Succeed())
		Expect(schema.Properties).To(HaveKey("request_id"))
		Expect(schema.Properties).To(HaveKey("from_branch"))
		Expect(schema.Properties["action"].Enum).To(ConsistOf("PUSH", "PULL_REQUEST", "MERGE"))
	})

	It("hides store errors behind a generic 500", func() {
		r := gin.New()
		handlers.RegisterEventRoutes(r, &unreachableStore{})

		for _, path := range []string{"/api/events", "/api/events/latest", "/api/stats"} {
			w := get(r, path)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(ContainSubstring(ingest.InternalErrorMessage))
			Expect(w.Body.String()).NotTo(ContainSubstring("10.0.0.5"))
		}
	})
})
