package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"

	"gpconnect/internal/common"
	"gpconnect/internal/dbmysql"
	"gpconnect/internal/user/mocks"
)

func TestHandler_GetByEnrollment(t *testing.T) {
	t.Run("resolves an enrollment to a profile", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mocks.NewMockUserRepository(ctrl)
		repo.EXPECT().
			GetUserByEnrollment(gomock.Any(), "0901CS1").
			Return(&dbmysql.User{UserID: 42, FullName: "Asha Verma", Enrollment: "0901CS1"}, nil).
			Times(1)

		router := mux.NewRouter()
		NewHandler(NewService(repo)).RegisterRoutes(router)

		req := httptest.NewRequest(http.MethodGet, "/users/enrollment/0901CS1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var profile common.Profile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		assert.Equal(t, "42", profile.ID)
		assert.Equal(t, "Asha Verma", profile.DisplayName)
	})

	t.Run("unknown enrollment is 404", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mocks.NewMockUserRepository(ctrl)
		repo.EXPECT().
			GetUserByEnrollment(gomock.Any(), "0901XX9").
			Return(nil, gorm.ErrRecordNotFound).
			Times(1)

		router := mux.NewRouter()
		NewHandler(NewService(repo)).RegisterRoutes(router)

		req := httptest.NewRequest(http.MethodGet, "/users/enrollment/0901XX9", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
