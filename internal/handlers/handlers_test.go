package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertkottelin/equity/internal/auth"
	"github.com/robertkottelin/equity/internal/billing"
	"github.com/robertkottelin/equity/internal/database"
	"github.com/robertkottelin/equity/internal/models"
)

// --- in-memory fakes ---

type fakeRepo struct {
	users  map[string]*models.User
	assets map[string][]models.Asset
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*models.User{}, assets: map[string][]models.Asset{}}
}

func (f *fakeRepo) CreateUser(_ context.Context, email, hash string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return nil, database.ErrEmailTaken
		}
	}
	u := &models.User{ID: uuid.NewString(), Email: email, PasswordHash: hash, SubscriptionStatus: "inactive"}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) UpdateSubscription(_ context.Context, userID, customerID, subscriptionID, status string) error {
	u, ok := f.users[userID]
	if !ok {
		return database.ErrNotFound
	}
	u.CustomerID = sql.NullString{String: customerID, Valid: customerID != ""}
	u.SubscriptionID = sql.NullString{String: subscriptionID, Valid: subscriptionID != ""}
	u.SubscriptionStatus = status
	return nil
}

func (f *fakeRepo) ListAssets(_ context.Context, userID string) ([]models.Asset, error) {
	return append([]models.Asset{}, f.assets[userID]...), nil
}

func (f *fakeRepo) CountAssets(_ context.Context, userID string) (int, error) {
	return len(f.assets[userID]), nil
}

func (f *fakeRepo) CreateAsset(_ context.Context, a *models.Asset) error {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.assets[a.UserID] = append(f.assets[a.UserID], *a)
	return nil
}

func (f *fakeRepo) UpdateAsset(_ context.Context, a *models.Asset) error {
	list := f.assets[a.UserID]
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = *a
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeRepo) DeleteAsset(_ context.Context, userID, id string) error {
	list := f.assets[userID]
	for i := range list {
		if list[i].ID == id {
			f.assets[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

type fakeBilling struct {
	declined   bool
	subscribed int
	canceled   []string
}

func (f *fakeBilling) Subscribe(_ context.Context, email, customerID, paymentMethodID string) (*billing.Subscription, error) {
	if f.declined {
		return nil, fmt.Errorf("%w: card was declined", billing.ErrCardDeclined)
	}
	f.subscribed++
	if customerID == "" {
		customerID = "cus_test"
	}
	return &billing.Subscription{ID: "sub_test", Status: "active", CustomerID: customerID}, nil
}

func (f *fakeBilling) Cancel(_ context.Context, subscriptionID string) error {
	f.canceled = append(f.canceled, subscriptionID)
	return nil
}

// --- harness ---

type testServer struct {
	router  *gin.Engine
	repo    *fakeRepo
	billing *fakeBilling
}

func newTestServer(t *testing.T, freeLimit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	repo := newFakeRepo()
	bill := &fakeBilling{}
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	h := NewHandler(repo, bill, tokens, freeLimit, logger)
	r := gin.New()
	h.Register(r)
	return &testServer{router: r, repo: repo, billing: bill}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func (s *testServer) registerUser(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, "POST", "/api/register", "", gin.H{"email": email, "password": "hunter2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

// --- account tests ---

func TestRegister(t *testing.T) {
	s := newTestServer(t, 0)
	w := s.do(t, "POST", "/api/register", "", gin.H{"email": "a@b.c", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@b.c", user["email"])
	assert.Equal(t, false, user["isSubscribed"])
}

func TestRegister_MissingFields(t *testing.T) {
	s := newTestServer(t, 0)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/register", "", gin.H{"email": "a@b.c"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/register", "", gin.H{"password": "pw"}).Code)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t, 0)
	s.registerUser(t, "a@b.c")
	w := s.do(t, "POST", "/api/register", "", gin.H{"email": "a@b.c", "password": "pw"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, 0)
	s.registerUser(t, "a@b.c")

	w := s.do(t, "POST", "/api/login", "", gin.H{"email": "a@b.c", "password": "hunter2"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	w = s.do(t, "GET", "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@b.c", decode(t, w)["email"])
}

func TestLogin_BadCredentials(t *testing.T) {
	s := newTestServer(t, 0)
	s.registerUser(t, "a@b.c")

	w := s.do(t, "POST", "/api/login", "", gin.H{"email": "a@b.c", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", decode(t, w)["error"])

	w = s.do(t, "POST", "/api/login", "", gin.H{"email": "nobody@b.c", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	s := newTestServer(t, 0)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, "GET", "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, "GET", "/api/me", "garbage", nil).Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, 0)
	w := s.do(t, "POST", "/api/logout", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
}

// --- asset tests ---

func assetBody(sector, name string, price, acq float64, amount int) gin.H {
	return gin.H{"sectorType": sector, "name": name, "price": price, "acquisitionPrice": acq, "amount": amount}
}

func TestCreateAsset_DerivedFieldsComputed(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	// Client-supplied derived fields must be ignored.
	body := assetBody("equity", "ACME", 100, 80, 10)
	body["value"] = 9999
	body["profitLoss"] = 9999
	body["profitLossPercentage"] = 9999

	w := s.do(t, "POST", "/api/equity/assets", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	asset := decode(t, w)["asset"].(map[string]any)
	assert.Equal(t, "1000", asset["value"])
	assert.Equal(t, "200", asset["profitLoss"])
	assert.Equal(t, "25", asset["profitLossPercentage"])
	assert.NotEmpty(t, asset["id"])
}

func TestCreateAsset_ZeroAcquisitionPrice(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	w := s.do(t, "POST", "/api/equity/assets", token, assetBody("cash", "wallet", 1, 0, 500))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	asset := decode(t, w)["asset"].(map[string]any)
	assert.Equal(t, "0", asset["profitLossPercentage"])
	assert.Equal(t, "500", asset["value"])
}

func TestCreateAsset_Validation(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	cases := []gin.H{
		{"name": "ACME", "price": 1, "acquisitionPrice": 1, "amount": 1},                          // missing sectorType
		{"sectorType": "equity", "price": 1, "acquisitionPrice": 1, "amount": 1},                  // missing name
		{"sectorType": "equity", "name": "A", "acquisitionPrice": 1, "amount": 1},                 // missing price
		{"sectorType": "equity", "name": "A", "price": 1, "amount": 1},                            // missing acquisitionPrice
		{"sectorType": "equity", "name": "A", "price": 1, "acquisitionPrice": 1},                  // missing amount
		assetBody("bonds", "A", 1, 1, 1),                                                         // bad sector
		assetBody("equity", "A", -1, 1, 1),                                                       // negative price
		assetBody("equity", "A", 1, 1, -1),                                                       // negative amount
	}
	for i, body := range cases {
		w := s.do(t, "POST", "/api/equity/assets", token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "case %d: %s", i, w.Body.String())
	}
}

func TestCreateAsset_ZeroValuesArePresent(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")
	w := s.do(t, "POST", "/api/equity/assets", token, assetBody("others", "idle", 0, 0, 0))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateAsset_FreeLimit(t *testing.T) {
	s := newTestServer(t, 2)
	token := s.registerUser(t, "a@b.c")

	for i := 0; i < 2; i++ {
		w := s.do(t, "POST", "/api/equity/assets", token, assetBody("equity", fmt.Sprintf("A%d", i), 10, 10, 1))
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := s.do(t, "POST", "/api/equity/assets", token, assetBody("equity", "A2", 10, 10, 1))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Subscribing removes the cap.
	w = s.do(t, "POST", "/api/subscribe", token, gin.H{"paymentMethodId": "pm_test"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, "POST", "/api/equity/assets", token, assetBody("equity", "A2", 10, 10, 1))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUpdateAsset(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	w := s.do(t, "POST", "/api/equity/assets", token, assetBody("equity", "ACME", 100, 80, 10))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["asset"].(map[string]any)["id"].(string)

	w = s.do(t, "PUT", "/api/equity/assets/"+id, token, assetBody("equity", "ACME", 120, 80, 10))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	asset := decode(t, w)["asset"].(map[string]any)
	assert.Equal(t, "1200", asset["value"])
	assert.Equal(t, "400", asset["profitLoss"])
	assert.Equal(t, "50", asset["profitLossPercentage"])
}

func TestUpdateAsset_NotFound(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	w := s.do(t, "PUT", "/api/equity/assets/not-a-uuid", token, assetBody("equity", "A", 1, 1, 1))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, "PUT", "/api/equity/assets/"+uuid.NewString(), token, assetBody("equity", "A", 1, 1, 1))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAsset(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	w := s.do(t, "POST", "/api/equity/assets", token, assetBody("equity", "ACME", 100, 80, 10))
	id := decode(t, w)["asset"].(map[string]any)["id"].(string)

	assert.Equal(t, http.StatusOK, s.do(t, "DELETE", "/api/equity/assets/"+id, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "DELETE", "/api/equity/assets/"+id, token, nil).Code)

	w = s.do(t, "GET", "/api/equity/assets", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["assets"])
}

func TestAssets_ScopedToUser(t *testing.T) {
	s := newTestServer(t, 0)
	tokenA := s.registerUser(t, "a@b.c")
	tokenB := s.registerUser(t, "b@b.c")

	w := s.do(t, "POST", "/api/equity/assets", tokenA, assetBody("equity", "ACME", 100, 80, 10))
	id := decode(t, w)["asset"].(map[string]any)["id"].(string)

	// Another user can neither see nor mutate it.
	w = s.do(t, "GET", "/api/equity/assets", tokenB, nil)
	assert.Empty(t, decode(t, w)["assets"])
	assert.Equal(t, http.StatusNotFound, s.do(t, "DELETE", "/api/equity/assets/"+id, tokenB, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "PUT", "/api/equity/assets/"+id, tokenB, assetBody("equity", "X", 1, 1, 1)).Code)
}

// --- summary tests ---

func TestSummary(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/equity/assets", token, assetBody("equity", "ACME", 100, 80, 10)).Code)
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/equity/assets", token, assetBody("fund", "IDX", 50, 50, 5)).Code)

	w := s.do(t, "GET", "/api/equity/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "1250", body["totalValue"])
	sectors := body["sectorSummary"].(map[string]any)
	equity := sectors["equity"].(map[string]any)
	assert.Equal(t, float64(1), equity["count"])
	assert.Equal(t, "1000", equity["value"])
	fund := sectors["fund"].(map[string]any)
	assert.Equal(t, float64(1), fund["count"])
	assert.Equal(t, "250", fund["value"])
	assert.Nil(t, body["premium"])
}

func TestSummary_Empty(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")
	w := s.do(t, "GET", "/api/equity/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "0", body["totalValue"])
	assert.Empty(t, body["sectorSummary"])
}

func TestSummary_PremiumForSubscribers(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/subscribe", token, gin.H{"paymentMethodId": "pm_test"}).Code)
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/equity/assets", token, assetBody("equity", "ACME", 100, 80, 10)).Code)

	w := s.do(t, "GET", "/api/equity/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	premium := decode(t, w)["premium"].(map[string]any)
	assert.Equal(t, "200", premium["totalProfitLoss"])
	assert.Equal(t, "25", premium["totalProfitLossPercentage"])
}

// --- subscription tests ---

func TestSubscribe(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	w := s.do(t, "POST", "/api/subscribe", token, gin.H{"paymentMethodId": "pm_test"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "sub_test", body["subscriptionId"])
	assert.Equal(t, "active", body["status"])

	w = s.do(t, "GET", "/api/check-subscription", token, nil)
	assert.Equal(t, true, decode(t, w)["isSubscribed"])
}

func TestSubscribe_MissingPaymentMethod(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")
	w := s.do(t, "POST", "/api/subscribe", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, s.billing.subscribed)
}

func TestSubscribe_CardDeclined(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")
	s.billing.declined = true

	w := s.do(t, "POST", "/api/subscribe", token, gin.H{"paymentMethodId": "pm_bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payment method declined", decode(t, w)["error"])

	w = s.do(t, "GET", "/api/check-subscription", token, nil)
	assert.Equal(t, false, decode(t, w)["isSubscribed"])
}

func TestCancelSubscription(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.registerUser(t, "a@b.c")

	// nothing to cancel yet
	w := s.do(t, "POST", "/api/cancel-subscription", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/subscribe", token, gin.H{"paymentMethodId": "pm_test"}).Code)
	w = s.do(t, "POST", "/api/cancel-subscription", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"sub_test"}, s.billing.canceled)

	w = s.do(t, "GET", "/api/check-subscription", token, nil)
	assert.Equal(t, false, decode(t, w)["isSubscribed"])
}
