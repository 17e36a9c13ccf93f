package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	pauseCalled  bool
	resumeCalled bool
	pauseErr     error
	resumeErr    error
}

func (f *fakeRunner) Pause(reason string) error { f.pauseCalled = true; return f.pauseErr }
func (f *fakeRunner) Resume() error             { f.resumeCalled = true; return f.resumeErr }

func newTestServer(runner CycleRunner) (*gin.Engine, *SchedulerVerifier, *TOTPVerifier) {
	gin.SetMode(gin.TestMode)
	scheduler := NewSchedulerVerifier("test-audience", "test-secret")
	totpVerifier := NewTOTPVerifier("JBSWY3DPEHPK3PXP")
	r := gin.New()
	srv := NewServer(scheduler, totpVerifier, runner, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"triggered": true})
	})
	srv.Register(r)
	return r, scheduler, totpVerifier
}

func TestRegister_CycleEndpointRejectsMissingToken(t *testing.T) {
	r, _, _ := newTestServer(&fakeRunner{})
	req := httptest.NewRequest(http.MethodPost, "/v1/cycle", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_CycleEndpointAcceptsValidToken(t *testing.T) {
	r, _, _ := newTestServer(&fakeRunner{})
	tok := signedToken(t, "test-secret", "test-audience", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodPost, "/v1/cycle", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegister_AdminPauseRequiresTOTP(t *testing.T) {
	runner := &fakeRunner{}
	r, _, _ := newTestServer(runner)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/pause", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, runner.pauseCalled)
}

func TestRegister_AdminPauseWithValidTOTPCallsRunner(t *testing.T) {
	runner := &fakeRunner{}
	r, _, _ := newTestServer(runner)
	code, err := totp.GenerateCode("JBSWY3DPEHPK3PXP", time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/pause", nil)
	req.Header.Set("X-TOTP-Code", code)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, runner.pauseCalled)
}

func TestRegister_AdminResumeWithValidTOTPCallsRunner(t *testing.T) {
	runner := &fakeRunner{}
	r, _, _ := newTestServer(runner)
	code, err := totp.GenerateCode("JBSWY3DPEHPK3PXP", time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/resume", nil)
	req.Header.Set("X-TOTP-Code", code)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, runner.resumeCalled)
}
