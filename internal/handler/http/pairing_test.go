package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"peer-rendezvous/internal/domain"
	httphandler "peer-rendezvous/internal/handler/http"
	"peer-rendezvous/internal/repository"
	"peer-rendezvous/internal/repository/mocks"
	"peer-rendezvous/internal/service"
)

// setupRouter 用 mock 存储层搭一个只含配对路由的测试路由器
func setupRouter(mockRepo *mocks.PairingRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	pairingService := service.NewPairingService(mockRepo, nil)
	h := httphandler.NewPairingHandler(pairingService)

	r := gin.New()
	pairing := r.Group("/api/pairing")
	{
		pairing.POST("/pending", h.CreatePending)
		pairing.POST("/accept", h.AcceptPending)
		pairing.POST("/check", h.CheckPending)
		pairing.DELETE("/pending", h.DeletePending)
		pairing.GET("/room", h.GetRoom)
		pairing.DELETE("/room", h.DeleteRoom)
		pairing.POST("/purge", h.PurgeByIdentity)
	}
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreatePending_Created(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	mockRepo.On("CreatePending", mock.Anything, mock.AnythingOfType("*domain.Pending")).Return(nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/pending",
		`{"joinid":"code-123","client1":"device-a","expiresInSeconds":600}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["ok"])
	// exp 是 RFC3339 的 UTC 时间戳
	exp, err := time.Parse(time.RFC3339, resp["exp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(600*time.Second), exp, 5*time.Second)
	mockRepo.AssertExpectations(t)
}

func TestCreatePending_MissingFields(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/pending", `{"joinid":"code-123"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRepo.AssertNotCalled(t, "CreatePending", mock.Anything, mock.Anything)
}

func TestCreatePending_DurationOutOfRange(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/pending",
		`{"joinid":"code-123","client1":"device-a","expiresInSeconds":90000}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody(t, w)
	assert.Contains(t, resp["error"], "expiresInSeconds")
	mockRepo.AssertNotCalled(t, "CreatePending", mock.Anything, mock.Anything)
}

func TestCreatePending_DuplicateJoinCode(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	mockRepo.On("CreatePending", mock.Anything, mock.AnythingOfType("*domain.Pending")).
		Return(repository.ErrDuplicateEntry).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/pending",
		`{"joinid":"code-123","client1":"device-a","expiresInSeconds":600}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "conflict", resp["error"])
	mockRepo.AssertExpectations(t)
}

func TestAcceptPending_ReturnsRoomID(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	accepted := &domain.Pending{JoinID: "code-123", Client1: "device-a"}
	mockRepo.On("AcceptPending", mock.Anything, "code-123", "device-b", mock.AnythingOfType("string"), (*domain.PushMeta)(nil)).
		Return(accepted, nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/accept",
		`{"joinid":"code-123","client2":"device-b"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Regexp(t, "^[0-9a-f]{32}$", resp["roomid"])
	mockRepo.AssertExpectations(t)
}

func TestAcceptPending_NotFoundOrExpired(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	mockRepo.On("AcceptPending", mock.Anything, "code-123", "device-b", mock.AnythingOfType("string"), (*domain.PushMeta)(nil)).
		Return(nil, repository.ErrPendingNotFound).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/accept",
		`{"joinid":"code-123","client2":"device-b"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "not_found_or_expired", resp["error"])
	mockRepo.AssertExpectations(t)
}

func TestAcceptPending_LostRace(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	mockRepo.On("AcceptPending", mock.Anything, "code-123", "device-c", mock.AnythingOfType("string"), (*domain.PushMeta)(nil)).
		Return(nil, repository.ErrAcceptConflict).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/accept",
		`{"joinid":"code-123","client2":"device-c"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "conflict", resp["error"])
	mockRepo.AssertExpectations(t)
}

func TestCheckPending_Accepted(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	client2 := "device-b"
	roomID := "abcdef0123456789abcdef0123456789"
	pending := &domain.Pending{JoinID: "code-123", Client1: "device-a", Client2: &client2, RoomID: &roomID}
	mockRepo.On("FindPending", mock.Anything, "code-123", "device-a").Return(pending, nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/check",
		`{"joinid":"code-123","client1":"device-a"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, roomID, resp["roomid"])
	mockRepo.AssertExpectations(t)
}

func TestCheckPending_StillWaiting(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	pending := &domain.Pending{JoinID: "code-123", Client1: "device-a"}
	mockRepo.On("FindPending", mock.Anything, "code-123", "device-a").Return(pending, nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/check",
		`{"joinid":"code-123","client1":"device-a"}`)

	// 仍在等待: 204, 无响应体
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	mockRepo.AssertExpectations(t)
}

func TestCheckPending_NotFound(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	mockRepo.On("FindPending", mock.Anything, "code-123", "device-a").
		Return(nil, repository.ErrPendingNotFound).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/check",
		`{"joinid":"code-123","client1":"device-a"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "not_found_or_expired", resp["error"])
	mockRepo.AssertExpectations(t)
}

func TestDeletePending_IdempotentOK(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	// 行已不存在: 仍然是 200, deleted 为 0
	mockRepo.On("DeletePending", mock.Anything, "code-123", "device-a").Return(int64(0), nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "DELETE", "/api/pairing/pending",
		`{"joinid":"code-123","client1":"device-a"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, float64(0), resp["deleted"])
	mockRepo.AssertExpectations(t)
}

func TestGetRoom_Found(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	token := "tok-1"
	platform := "apns"
	room := &domain.PairedRoom{
		RoomID:        "abcdef0123456789abcdef0123456789",
		Client1:       "device-a",
		Client2:       "device-b",
		PushToken2:    &token,
		PushPlatform2: &platform,
	}
	mockRepo.On("FindRoom", mock.Anything, room.RoomID).Return(room, nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "GET", "/api/pairing/room?roomid="+room.RoomID, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, room.RoomID, resp["roomid"])
	assert.Equal(t, "device-a", resp["client1"])
	assert.Equal(t, "device-b", resp["client2"])
	assert.Equal(t, "tok-1", resp["pushToken2"])
	assert.Equal(t, "apns", resp["pushPlatform2"])
	// 未提供的推送字段不出现在响应里
	_, present := resp["pushToken1"]
	assert.False(t, present)
	mockRepo.AssertExpectations(t)
}

func TestGetRoom_NotFound(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	mockRepo.On("FindRoom", mock.Anything, "missing").Return(nil, repository.ErrRoomNotFound).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "GET", "/api/pairing/room?roomid=missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "not_found", resp["error"])
	mockRepo.AssertExpectations(t)
}

func TestGetRoom_MissingQueryParam(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	r := setupRouter(mockRepo)

	w := doJSON(r, "GET", "/api/pairing/room", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRepo.AssertNotCalled(t, "FindRoom", mock.Anything, mock.Anything)
}

func TestDeleteRoom_OK(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	mockRepo.On("DeleteRoom", mock.Anything, "abc123").Return(nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "DELETE", "/api/pairing/room", `{"roomid":"abc123"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["ok"])
	mockRepo.AssertExpectations(t)
}

func TestPurge_BatchDeviceIDs(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	mockRepo.On("PurgeByIdentity", mock.Anything, []string{"device-a", "device-b"}).
		Return(int64(1), int64(2), nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/purge", `{"deviceIds":["device-a","device-b"]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, float64(2), resp["deviceIdCount"])
	assert.Equal(t, float64(1), resp["roomsDeleted"])
	assert.Equal(t, float64(2), resp["pendingsDeleted"])
	mockRepo.AssertExpectations(t)
}

func TestPurge_LegacySingleDeviceID(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	// 旧客户端的单个 deviceId 字段折算成单元素数组
	mockRepo.On("PurgeByIdentity", mock.Anything, []string{"device-a"}).
		Return(int64(0), int64(1), nil).Once()
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/purge", `{"deviceId":"device-a"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestPurge_EmptyRequest(t *testing.T) {
	mockRepo := new(mocks.PairingRepository)
	r := setupRouter(mockRepo)

	w := doJSON(r, "POST", "/api/pairing/purge", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRepo.AssertNotCalled(t, "PurgeByIdentity", mock.Anything, mock.Anything)
}
