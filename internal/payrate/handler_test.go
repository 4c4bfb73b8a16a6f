package payrate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockService implements payrate.ServiceAPI for handler tests
type MockService struct {
	created    *payrate.CreateRateDTO
	createdFor int64
	err        error
}

func (m *MockService) CreateRate(_ context.Context, _ *internal.User, userID int64, dto payrate.CreateRateDTO) (*payrate.PayRate, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &dto
	m.createdFor = userID
	return &payrate.PayRate{ID: 7, UserID: userID, RateType: payrate.RateType(dto.RateType), BaseRate: dto.BaseRate, IsActive: true}, nil
}

func (m *MockService) UpdateRate(context.Context, *internal.User, int64, payrate.UpdateRateDTO) (*payrate.PayRate, error) {
	return nil, m.err
}

func (m *MockService) DeactivateRate(_ context.Context, _ *internal.User, id int64, _ string) (*payrate.PayRate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &payrate.PayRate{ID: id}, nil
}

func (m *MockService) GetRate(_ context.Context, _ *internal.User, id int64) (*payrate.PayRate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &payrate.PayRate{ID: id}, nil
}

func (m *MockService) ListRates(context.Context, *internal.User, int64) ([]*payrate.PayRate, error) {
	return []*payrate.PayRate{{ID: 1}, {ID: 2}}, m.err
}

func (m *MockService) GetHistory(context.Context, *internal.User, int64) ([]*payrate.HistoryEntry, error) {
	return nil, m.err
}

var _ = Describe("PayRate Handler", func() {
	var (
		svc    *MockService
		router chi.Router
		actor  *internal.User
	)

	BeforeEach(func() {
		svc = &MockService{}
		actor = &internal.User{ID: 100, Permissions: []string{internal.PermissionManagePayRates}}
		h := payrate.NewHandler(svc)
		router = chi.NewRouter()
		router.Post("/users/{userID}/pay-rates", h.CreateRate)
		router.Get("/users/{userID}/pay-rates", h.ListRates)
		router.Get("/pay-rates/{id}", h.GetRate)
		router.Post("/pay-rates/{id}/deactivate", h.DeactivateRate)
	})

	do := func(method, path, body string, user *internal.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if user != nil {
			req = req.WithContext(internal.ContextWithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("creates a rate for the user in the path", func() {
		rec := do(http.MethodPost, "/users/5/pay-rates",
			`{"rate_type":"hourly","base_rate":"20.00","effective_from":"2024-01-01"}`, actor)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(svc.createdFor).To(Equal(int64(5)))
		Expect(svc.created.BaseRate.Equal(dec("20"))).To(BeTrue())

		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["id"]).To(BeEquivalentTo(7))
		Expect(body["base_rate"]).To(Equal("20"))
	})

	It("rejects unknown fields", func() {
		rec := do(http.MethodPost, "/users/5/pay-rates", `{"rate_type":"hourly","salary":1}`, actor)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(svc.created).To(BeNil())
	})

	It("rejects a non numeric user id", func() {
		rec := do(http.MethodGet, "/users/abc/pay-rates", "", actor)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("requires an authenticated user", func() {
		rec := do(http.MethodGet, "/pay-rates/1", "", nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("maps overlap errors to 409 with the conflicting rate", func() {
		svc.err = &payrate.OverlapError{UserID: 5, ConflictingID: 3}

		rec := do(http.MethodPost, "/users/5/pay-rates",
			`{"rate_type":"hourly","base_rate":"20","effective_from":"2024-01-01"}`, actor)

		Expect(rec.Code).To(Equal(http.StatusConflict))
		var body struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Error.Code).To(Equal("RATE_OVERLAP"))
		Expect(body.Error.Message).To(ContainSubstring("3"))
	})

	It("maps permission failures to 403", func() {
		svc.err = payrate.ErrForbidden
		rec := do(http.MethodGet, "/pay-rates/1", "", actor)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("wraps lists in an envelope", func() {
		rec := do(http.MethodGet, "/users/5/pay-rates", "", actor)

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body map[string][]map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["pay_rates"]).To(HaveLen(2))
	})

	It("deactivates without a body", func() {
		req := httptest.NewRequest(http.MethodPost, "/pay-rates/4/deactivate", nil)
		req = req.WithContext(internal.ContextWithUser(req.Context(), actor))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
