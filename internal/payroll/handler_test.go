package payroll_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/frahmantamala/timetrack-payroll/internal/payroll"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Payroll Handler", func() {
	var (
		e      *env
		router chi.Router
	)

	BeforeEach(func() {
		e = newEnv()
		h := payroll.NewHandler(e.service, e.ledger, e.reports)
		router = chi.NewRouter()
		router.Route("/payroll", func(r chi.Router) {
			r.Post("/periods", h.CreatePeriod)
			r.Get("/periods", h.ListPeriods)
			r.Get("/periods/{id}", h.GetPeriod)
			r.Patch("/periods/{id}", h.UpdatePeriod)
			r.Delete("/periods/{id}", h.DeletePeriod)
			r.Post("/periods/{id}/process", h.ProcessPeriod)
			r.Post("/periods/{id}/approve", h.ApprovePeriod)
			r.Post("/periods/{id}/mark-paid", h.MarkPeriodPaid)
			r.Post("/periods/{id}/void", h.VoidPeriod)
			r.Get("/periods/{id}/entries", h.ListEntries)
			r.Get("/periods/{id}/summary", h.GetSummary)
			r.Get("/entries/{id}", h.GetEntry)
			r.Get("/entries/{id}/payslip", h.GetPayslip)
			r.Get("/entries/{id}/adjustments", h.ListAdjustments)
			r.Post("/entries/{id}/adjustments", h.AddAdjustment)
			r.Patch("/adjustments/{id}", h.UpdateAdjustment)
			r.Delete("/adjustments/{id}", h.RemoveAdjustment)
			r.Get("/users/{userID}/report", h.GetUserReport)
		})
	})

	do := func(method, path, body string, user *internal.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if user != nil {
			req = req.WithContext(internal.ContextWithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		body := decode(rec)
		errBody, ok := body["error"].(map[string]interface{})
		Expect(ok).To(BeTrue())
		return errBody["code"].(string)
	}

	createPeriod := func() int64 {
		rec := do(http.MethodPost, "/payroll/periods",
			`{"name":"Week 1","period_type":"weekly","start_date":"2024-01-01","end_date":"2024-01-07"}`, e.manager)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		return int64(decode(rec)["id"].(float64))
	}

	It("runs a period through its lifecycle", func() {
		// Given
		e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
		e.source.workDays(1, day("2024-01-01"), 5, 9)
		id := createPeriod()

		// When
		processed := do(http.MethodPost, fmt.Sprintf("/payroll/periods/%d/process", id), "", e.manager)
		approved := do(http.MethodPost, fmt.Sprintf("/payroll/periods/%d/approve", id), `{"accept_partial":false}`, e.approver)
		paid := do(http.MethodPost, fmt.Sprintf("/payroll/periods/%d/mark-paid", id), "", e.approver)

		// Then
		Expect(processed.Code).To(Equal(http.StatusOK))
		result := decode(processed)
		Expect(result["period"].(map[string]interface{})["total_amount"]).To(Equal("950"))
		Expect(result["entries"]).To(HaveLen(1))
		Expect(approved.Code).To(Equal(http.StatusOK))
		Expect(decode(approved)["status"]).To(Equal("approved"))
		Expect(paid.Code).To(Equal(http.StatusOK))
		Expect(decode(paid)["status"]).To(Equal("paid"))
	})

	It("returns 409 PERIOD_NOT_PROCESSED when approving too early", func() {
		id := createPeriod()

		rec := do(http.MethodPost, fmt.Sprintf("/payroll/periods/%d/approve", id), "", e.approver)

		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(errorCode(rec)).To(Equal("PERIOD_NOT_PROCESSED"))
	})

	It("returns 409 INVALID_STATE_TRANSITION naming the current status", func() {
		id := createPeriod()

		rec := do(http.MethodPost, fmt.Sprintf("/payroll/periods/%d/mark-paid", id), "", e.approver)

		Expect(rec.Code).To(Equal(http.StatusConflict))
		body := decode(rec)["error"].(map[string]interface{})
		Expect(body["code"]).To(Equal("INVALID_STATE_TRANSITION"))
		Expect(body["message"]).To(ContainSubstring("draft"))
	})

	It("returns 409 PERIOD_LOCKED for adjustments on an approved period", func() {
		// Given
		e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
		id := createPeriod()
		result := e.process(id)
		_, err := e.service.ApprovePeriod(context.Background(), e.approver, id, payroll.ApproveOptions{})
		Expect(err).NotTo(HaveOccurred())

		// When
		rec := do(http.MethodPost, fmt.Sprintf("/payroll/entries/%d/adjustments", result.Entries[0].ID),
			`{"adjustment_type":"bonus","amount":"10"}`, e.manager)

		// Then
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(errorCode(rec)).To(Equal("PERIOD_LOCKED"))
	})

	It("adds, lists and removes adjustments", func() {
		e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
		id := createPeriod()
		entryID := e.process(id).Entries[0].ID

		added := do(http.MethodPost, fmt.Sprintf("/payroll/entries/%d/adjustments", entryID),
			`{"adjustment_type":"deduction","description":"loan","amount":"25.5"}`, e.manager)
		Expect(added.Code).To(Equal(http.StatusCreated))
		adjustment := decode(added)
		Expect(adjustment["amount"]).To(Equal("-25.5"))

		listed := do(http.MethodGet, fmt.Sprintf("/payroll/entries/%d/adjustments", entryID), "", e.manager)
		Expect(listed.Code).To(Equal(http.StatusOK))
		Expect(decode(listed)["adjustments"]).To(HaveLen(1))

		removed := do(http.MethodDelete, fmt.Sprintf("/payroll/adjustments/%d", int64(adjustment["id"].(float64))), "", e.manager)
		Expect(removed.Code).To(Equal(http.StatusNoContent))
	})

	It("rejects combining user_ids and rate_types", func() {
		id := createPeriod()

		rec := do(http.MethodPost, fmt.Sprintf("/payroll/periods/%d/process", id),
			`{"user_ids":[1],"rate_types":["hourly"]}`, e.manager)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("serves payslips as PDF", func() {
		e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
		id := createPeriod()
		entryID := e.process(id).Entries[0].ID

		rec := do(http.MethodGet, fmt.Sprintf("/payroll/entries/%d/payslip", entryID), "", &internal.User{ID: 1})

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/pdf"))
		Expect(rec.Body.String()).To(HavePrefix("%PDF"))
	})

	It("validates the period_id filter of user reports", func() {
		rec := do(http.MethodGet, "/payroll/users/1/report?period_id=abc", "", &internal.User{ID: 1})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodGet, "/payroll/users/1/report", "", &internal.User{ID: 1})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)).To(HaveKey("reports"))
	})

	It("returns 403 for actors without permission", func() {
		rec := do(http.MethodPost, "/payroll/periods",
			`{"name":"Week 1","period_type":"weekly","start_date":"2024-01-01","end_date":"2024-01-07"}`, &internal.User{ID: 5})
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("returns 401 without a user", func() {
		rec := do(http.MethodGet, "/payroll/periods", "", nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns 404 for unknown periods", func() {
		rec := do(http.MethodGet, "/payroll/periods/4242", "", e.manager)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(errorCode(rec)).To(Equal("PERIOD_NOT_FOUND"))
	})

	It("deletes drafts with 204", func() {
		id := createPeriod()
		rec := do(http.MethodDelete, fmt.Sprintf("/payroll/periods/%d", id), "", e.manager)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})
})
