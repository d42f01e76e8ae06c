package registry

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisync/registry/internal/repository/sqlite"
	"github.com/medisync/registry/internal/session"
	"github.com/medisync/registry/pkg/logger"
	"github.com/medisync/registry/pkg/messaging/memory"
)

func newTestHandler(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})

	store := sqlite.NewStore(sqlite.Config{Path: ":memory:"})
	t.Cleanup(func() { store.Close() })
	repo := sqlite.NewPatientRepository(store, nil)

	bus := memory.NewBus()
	t.Cleanup(func() { bus.Close() })

	sess, err := session.New(repo, bus, nil, log, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	engine := gin.New()
	NewHandler(sess, log).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validBody() map[string]interface{} {
	return map[string]interface{}{
		"firstName":         "John",
		"lastName":          "Doe",
		"age":               30,
		"gender":            "Male",
		"contactNumber":     "1234567890",
		"email":             "john@x.com",
		"bloodGroup":        "A+",
		"medicalConditions": "diabetes, hypertension, ",
	}
}

func TestRegisterPatientSucceeds(t *testing.T) {
	engine := newTestHandler(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/patients", validBody())
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "success", resp["status"])

	patients, ok := resp["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, patients, 1)

	patient := patients[0].(map[string]interface{})
	assert.Equal(t, "John", patient["firstname"])
	assert.Equal(t, []interface{}{"diabetes", "hypertension"}, patient["medicalconditions"])
}

func TestRegisterPatientReportsAllFieldErrors(t *testing.T) {
	engine := newTestHandler(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/patients", map[string]interface{}{
		"firstName":     "",
		"lastName":      "Doe",
		"age":           0,
		"gender":        "X",
		"contactNumber": "123",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "error", resp["status"])

	fields, ok := resp["errors"].(map[string]interface{})
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(fields), 4)
	assert.Equal(t, "First Name is required", fields["firstName"])
	assert.Equal(t, "Contact number must be 10 digits", fields["contactNumber"])
}

func TestListStartsEmptyWithNoRecordsState(t *testing.T) {
	engine := newTestHandler(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/patients", nil)
	require.Equal(t, http.StatusOK, w.Code)

	view := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "no_records", view["state"])
	assert.Equal(t, float64(0), view["total"])
}

func TestListReflectsRegistrationDespiteCache(t *testing.T) {
	engine := newTestHandler(t)

	// Prime the view cache, then write; the change must flush it.
	doJSON(t, engine, http.MethodGet, "/api/v1/patients", nil)
	require.Equal(t, http.StatusCreated, doJSON(t, engine, http.MethodPost, "/api/v1/patients", validBody()).Code)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/patients", nil)
	require.Equal(t, http.StatusOK, w.Code)

	view := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), view["total"])
	assert.Equal(t, "ok", view["state"])
}

func TestSetFilterDistinguishesNoMatch(t *testing.T) {
	engine := newTestHandler(t)
	require.Equal(t, http.StatusCreated, doJSON(t, engine, http.MethodPost, "/api/v1/patients", validBody()).Code)

	w := doJSON(t, engine, http.MethodPut, "/api/v1/patients/filter", map[string]string{"search": "jane"})
	require.Equal(t, http.StatusOK, w.Code)

	view := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "jane", view["searchText"])
	assert.Equal(t, "no_match", view["state"])
	assert.Equal(t, float64(1), view["total"])
	assert.Empty(t, view["patients"])
}
