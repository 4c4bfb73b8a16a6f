package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/auth"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func errorCode(rec *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return body.Error.Code
}

var _ = Describe("Auth HTTP", func() {
	var (
		repo    *mockRepository
		gen     *auth.JWTTokenGenerator
		handler *auth.Handler
		rbac    *auth.RBACAuthorization
		owner   *auth.OwnerPolicy
		router  chi.Router
	)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := internal.UserFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(user)
	})

	bearer := func(userID int64) string {
		token, err := gen.GenerateAccessToken(userID, "x@example.com")
		Expect(err).NotTo(HaveOccurred())
		return "Bearer " + token
	}

	do := func(method, path, authz string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		repo = newMockRepository()
		var service *auth.Service
		service, gen = newTestService(repo)
		handler = auth.NewHandler(service)
		checker := auth.NewPermissionChecker()
		rbac = auth.NewRBACAuthorization(checker, quietLogger())
		owner = auth.NewOwnerPolicy(checker)

		router = chi.NewRouter()
		router.Post("/auth/login", handler.Login)
		router.Post("/auth/refresh", handler.RefreshToken)
		router.Post("/auth/logout", handler.Logout)
		router.Group(func(r chi.Router) {
			r.Use(handler.AuthMiddleware)
			r.Get("/me", ok)
			r.With(rbac.Require(internal.PermissionManagePayroll)).Get("/manage", ok)
			r.With(owner.RequireSelfOr(rbac, "userID", internal.PermissionViewPayrollReports)).Get("/users/{userID}/report", ok)
		})
	})

	It("logs in and returns tokens", func() {
		rec := do(http.MethodPost, "/auth/login", "", auth.LoginDTO{Email: "clerk@example.com", Password: "correct_password"})
		Expect(rec.Code).To(Equal(http.StatusOK))

		var tokens auth.AuthTokens
		Expect(json.Unmarshal(rec.Body.Bytes(), &tokens)).To(Succeed())
		Expect(tokens.AccessToken).NotTo(BeEmpty())
	})

	It("answers bad credentials with 401 INVALID_CREDENTIALS", func() {
		rec := do(http.MethodPost, "/auth/login", "", auth.LoginDTO{Email: "clerk@example.com", Password: "wrong"})
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(errorCode(rec)).To(Equal("INVALID_CREDENTIALS"))
	})

	It("rejects malformed login bodies", func() {
		rec := do(http.MethodPost, "/auth/login", "", map[string]string{"username": "x"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("refreshes through the HTTP route", func() {
		refresh, err := gen.GenerateRefreshToken(1, "clerk@example.com")
		Expect(err).NotTo(HaveOccurred())

		rec := do(http.MethodPost, "/auth/refresh", "", auth.RefreshTokenDTO{RefreshToken: refresh})
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("logs out with a valid access token", func() {
		rec := do(http.MethodPost, "/auth/logout", bearer(1), nil)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})

	Describe("AuthMiddleware", func() {
		It("puts the user with permissions into the context", func() {
			// When
			rec := do(http.MethodGet, "/me", bearer(2), nil)

			// Then
			Expect(rec.Code).To(Equal(http.StatusOK))
			var user internal.User
			Expect(json.Unmarshal(rec.Body.Bytes(), &user)).To(Succeed())
			Expect(user.ID).To(Equal(int64(2)))
			Expect(user.Permissions).To(ConsistOf(internal.PermissionManagePayroll))
		})

		It("rejects a missing token", func() {
			rec := do(http.MethodGet, "/me", "", nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(rec)).To(Equal("INVALID_TOKEN"))
		})

		It("rejects an expired token", func() {
			expired := auth.NewJWTTokenGenerator(testSecret, -time.Minute, time.Hour)
			token, _ := expired.GenerateAccessToken(1, "clerk@example.com")

			rec := do(http.MethodGet, "/me", "Bearer "+token, nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(rec)).To(Equal("TOKEN_EXPIRED"))
		})

		It("rejects deactivated users holding a live token", func() {
			token := bearer(2)
			delete(repo.users, 2)

			rec := do(http.MethodGet, "/me", token, nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal("USER_INACTIVE"))
		})
	})

	Describe("RBAC", func() {
		It("admits holders of the permission", func() {
			Expect(do(http.MethodGet, "/manage", bearer(2), nil).Code).To(Equal(http.StatusOK))
		})

		It("turns others away with 403", func() {
			rec := do(http.MethodGet, "/manage", bearer(1), nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal("UNAUTHORIZED_ACCESS"))
		})
	})

	Describe("owner policy", func() {
		It("lets a user read their own report", func() {
			Expect(do(http.MethodGet, "/users/1/report", bearer(1), nil).Code).To(Equal(http.StatusOK))
		})

		It("forbids reading someone else's report without the permission", func() {
			Expect(do(http.MethodGet, "/users/2/report", bearer(1), nil).Code).To(Equal(http.StatusForbidden))
		})

		It("lets report viewers read anyone", func() {
			repo.users[2].Permissions = []string{internal.PermissionViewPayrollReports}
			Expect(do(http.MethodGet, "/users/1/report", bearer(2), nil).Code).To(Equal(http.StatusOK))
		})

		It("validates the owner id", func() {
			Expect(do(http.MethodGet, "/users/abc/report", bearer(1), nil).Code).To(Equal(http.StatusBadRequest))
		})
	})
})
