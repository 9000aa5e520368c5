package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/hotel-booking-engine/internal/config"
	"github.com/iliyamo/hotel-booking-engine/internal/handler"
	"github.com/iliyamo/hotel-booking-engine/internal/metrics"
	"github.com/iliyamo/hotel-booking-engine/internal/model"
	"github.com/iliyamo/hotel-booking-engine/internal/queue"
	"github.com/iliyamo/hotel-booking-engine/internal/router"
	"github.com/iliyamo/hotel-booking-engine/internal/service"
	"github.com/iliyamo/hotel-booking-engine/internal/store"
	"github.com/iliyamo/hotel-booking-engine/internal/utils"
)

const secret = "test-secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ns ...string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ns)
	return 0, nil
}

type apiEnv struct {
	t        *testing.T
	srv      http.Handler
	mem      *store.Memory
	accounts *store.Accounts
	events   *recordingPublisher
	cache    *recordingInvalidator
	admin    string
	desk     string
	deluxe   model.RoomType
	suite    model.RoomType
	today    time.Time
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	return newAPIOver(t, func(m *store.Memory) store.Store { return m })
}

// newAPIOver builds the app with the booking engine running over wrap(mem).
func newAPIOver(t *testing.T, wrap func(*store.Memory) store.Store) *apiEnv {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	mem.LockWait = time.Second
	acc := store.NewAccounts()

	env := &apiEnv{
		t:        t,
		mem:      mem,
		accounts: acc,
		events:   &recordingPublisher{},
		cache:    &recordingInvalidator{},
		today:    utils.Day(time.Now()),
	}
	env.deluxe = mem.PutRoomType(model.RoomType{Name: "Deluxe", TotalRooms: 5, BasePrice: decimal.RequireFromString("100")})
	env.suite = mem.PutRoomType(model.RoomType{Name: "Suite", TotalRooms: 2, BasePrice: decimal.RequireFromString("250")})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	st := wrap(mem)
	inv := service.NewInventoryService(st, nil, m)
	if _, err := inv.GenerateAllInventory(ctx, 30); err != nil {
		t.Fatalf("generate inventory: %v", err)
	}
	bookings := service.NewBookingService(st, inv, nil, m)

	hash, _ := utils.HashPassword("admin-password", bcrypt.MinCost)
	adminID, _ := acc.Create(ctx, "admin@hotel.test", hash, model.RoleAdmin)
	deskID, _ := acc.Create(ctx, "desk@hotel.test", hash, model.RoleFrontDesk)
	a, _ := utils.NewAccessToken(secret, adminID, model.RoleAdmin, 15)
	d, _ := utils.NewAccessToken(secret, deskID, model.RoleFrontDesk, 15)
	env.admin, env.desk = a.Token, d.Token

	hooks := handler.Hooks{Cache: env.cache, Events: env.events}
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	env.srv = router.New(router.Deps{
		JWTSecret:      secret,
		BookingTimeout: 5 * time.Second,
		Gatherer:       reg,
		Health:         &handler.HealthHandler{Driver: "memory"},
		Auth:           handler.NewAuthHandler(cfg, acc, acc, nil),
		Bookings:       handler.NewBookingHandler(bookings, hooks),
		Inventory:      handler.NewInventoryHandler(inv, mem, hooks),
	})
	return env
}

func (env *apiEnv) date(days int) string {
	return utils.FormatDate(env.today.AddDate(0, 0, days))
}

func (env *apiEnv) do(method, path, token string, body any) (int, map[string]any) {
	env.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			env.t.Fatal(err)
		}
		rdr = bytes.NewReader(bs)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			env.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body, err)
		}
	}
	return rec.Code, out
}

func guest() map[string]any {
	return map[string]any{"name": "Ada Lovelace", "email": "ada@example.com", "phone": "+44 20 0000"}
}

func (env *apiEnv) createBooking(roomType uint64, in, out, rooms int) (int, map[string]any) {
	return env.do(http.MethodPost, "/v1/bookings", env.desk, map[string]any{
		"customer":     guest(),
		"room_type_id": roomType,
		"check_in":     env.date(in),
		"check_out":    env.date(out),
		"num_rooms":    rooms,
	})
}

func bookingPath(body map[string]any, suffix string) string {
	return "/v1/bookings/" + strconv.Itoa(int(body["id"].(float64))) + suffix
}

func assertDecimal(t *testing.T, got any, want string) {
	t.Helper()
	s, ok := got.(string)
	if !ok {
		t.Fatalf("amount %v is not a string", got)
	}
	if !decimal.RequireFromString(s).Equal(decimal.RequireFromString(want)) {
		t.Errorf("amount = %s, want %s", s, want)
	}
}

func TestCreateBookingEndToEnd(t *testing.T) {
	env := newAPI(t)

	code, body := env.createBooking(env.deluxe.ID, 2, 4, 2)
	if code != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	assertDecimal(t, body["total_amount"], "400")
	if body["status"] != "CONFIRMED" || body["nights"].(float64) != 2 {
		t.Errorf("booking = %v", body)
	}
	if cust := body["customer"].(map[string]any); cust["email"] != "ada@example.com" {
		t.Errorf("customer = %v", cust)
	}
	if items := body["items"].([]any); len(items) != 1 {
		t.Errorf("items = %v", items)
	}

	if got := env.events.types(); len(got) != 1 || got[0] != queue.BookingCreated {
		t.Errorf("events = %v", got)
	}
	if len(env.cache.calls) != 1 {
		t.Errorf("invalidations = %v", env.cache.calls)
	}

	code, avail := env.do(http.MethodGet, "/v1/availability?start="+env.date(2)+"&end="+env.date(4)+
		"&room_type_id="+strconv.FormatUint(env.deluxe.ID, 10)+"&num_rooms=3", "", nil)
	if code != http.StatusOK || avail["min_available"].(float64) != 3 || avail["is_available"] != true {
		t.Errorf("availability = %d %v", code, avail)
	}
}

func TestCreateBookingRejections(t *testing.T) {
	env := newAPI(t)

	code, body := env.createBooking(env.suite.ID, 1, 3, 3)
	if code != http.StatusConflict || body["code"] != "INVENTORY_UNAVAILABLE" {
		t.Fatalf("oversell = %d %v", code, body)
	}
	if body["date"] != env.date(1) || body["available"].(float64) != 2 || body["requested"].(float64) != 3 {
		t.Errorf("unavailable body = %v", body)
	}

	code, body = env.createBooking(999, 1, 3, 1)
	if code != http.StatusNotFound || body["code"] != "ROOM_TYPE_NOT_FOUND" {
		t.Errorf("unknown room type = %d %v", code, body)
	}

	code, body = env.createBooking(env.deluxe.ID, 3, 3, 1)
	if code != http.StatusBadRequest || body["code"] != "INVALID_DATE_RANGE" {
		t.Errorf("empty stay = %d %v", code, body)
	}

	code, body = env.createBooking(env.deluxe.ID, 28, 35, 1)
	if code != http.StatusNotFound || body["code"] != "INVENTORY_NOT_FOUND" {
		t.Errorf("beyond horizon = %d %v", code, body)
	}

	code, body = env.do(http.MethodPost, "/v1/bookings", env.desk, map[string]any{
		"customer":     map[string]any{"name": "", "email": "not-an-email"},
		"room_type_id": env.deluxe.ID,
		"check_in":     "03/10/2030",
		"check_out":    env.date(3),
		"num_rooms":    0,
	})
	if code != http.StatusBadRequest || body["code"] != "INVALID_REQUEST" {
		t.Fatalf("validation = %d %v", code, body)
	}
	fields := map[string]bool{}
	for _, f := range body["fields"].([]any) {
		fields[f.(map[string]any)["field"].(string)] = true
	}
	for _, want := range []string{"customer.name", "customer.email", "check_in", "num_rooms"} {
		if !fields[want] {
			t.Errorf("missing field error for %s in %v", want, body["fields"])
		}
	}

	if got := env.events.types(); len(got) != 0 {
		t.Errorf("rejected requests published events: %v", got)
	}
}

func TestBookingLifecycle(t *testing.T) {
	env := newAPI(t)
	_, created := env.createBooking(env.deluxe.ID, 2, 4, 1)

	code, body := env.do(http.MethodPut, bookingPath(created, "/modify"), env.desk, map[string]any{
		"check_out": env.date(5),
		"num_rooms": 2,
	})
	if code != http.StatusOK || body["num_rooms"].(float64) != 2 || body["check_out"] != env.date(5) {
		t.Fatalf("modify = %d %v", code, body)
	}
	assertDecimal(t, body["total_amount"], "600")

	code, body = env.do(http.MethodPut, bookingPath(created, ""), env.desk, map[string]any{
		"amount_paid": "150.50",
		"notes":       "late arrival",
	})
	if code != http.StatusOK || body["notes"] != "late arrival" {
		t.Fatalf("update = %d %v", code, body)
	}
	assertDecimal(t, body["balance_due"], "449.50")

	code, body = env.do(http.MethodPost, bookingPath(created, "/cancel"), env.desk, map[string]any{"reason": "guest request"})
	if code != http.StatusOK || body["status"] != "CANCELLED" {
		t.Fatalf("cancel = %d %v", code, body)
	}
	if !strings.Contains(body["notes"].(string), "Cancellation reason: guest request") {
		t.Errorf("notes = %q", body["notes"])
	}

	code, body = env.do(http.MethodPost, bookingPath(created, "/cancel"), env.desk, nil)
	if code != http.StatusBadRequest || body["code"] != "BOOKING_ALREADY_CANCELLED" {
		t.Errorf("second cancel = %d %v", code, body)
	}

	code, body = env.do(http.MethodPut, bookingPath(created, "/modify"), env.desk, map[string]any{"num_rooms": 1})
	if code != http.StatusBadRequest || body["code"] != "BOOKING_NOT_MODIFIABLE" {
		t.Errorf("modify cancelled = %d %v", code, body)
	}

	want := []string{queue.BookingCreated, queue.BookingModified, queue.BookingUpdated, queue.BookingCancelled}
	if got := env.events.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}

	code, avail := env.do(http.MethodGet, "/v1/availability?start="+env.date(2)+"&end="+env.date(5)+
		"&room_type_id="+strconv.FormatUint(env.deluxe.ID, 10)+"&num_rooms=5", "", nil)
	if code != http.StatusOK || avail["is_available"] != true {
		t.Errorf("inventory not restored: %d %v", code, avail)
	}
}

func TestMultiRoomBooking(t *testing.T) {
	env := newAPI(t)

	code, body := env.do(http.MethodPost, "/v1/bookings/multi-room", env.desk, map[string]any{
		"customer":  guest(),
		"check_in":  env.date(1),
		"check_out": env.date(3),
		"rooms": []map[string]any{
			{"room_type_id": env.suite.ID, "quantity": 1},
			{"room_type_id": env.deluxe.ID, "quantity": 2},
		},
	})
	if code != http.StatusCreated {
		t.Fatalf("multi-room = %d %v", code, body)
	}
	assertDecimal(t, body["total_amount"], "900")
	if body["num_rooms"].(float64) != 3 || len(body["items"].([]any)) != 2 {
		t.Errorf("booking = %v", body)
	}

	code, body = env.do(http.MethodPost, "/v1/bookings/multi-room", env.desk, map[string]any{
		"customer":  guest(),
		"check_in":  env.date(1),
		"check_out": env.date(3),
		"rooms":     []map[string]any{{"room_type_id": env.deluxe.ID, "quantity": 1}, {"room_type_id": env.suite.ID, "quantity": 2}},
	})
	if code != http.StatusConflict {
		t.Fatalf("oversold suite = %d %v", code, body)
	}

	code, avail := env.do(http.MethodGet, "/v1/availability?start="+env.date(1)+"&end="+env.date(3)+
		"&room_type_id="+strconv.FormatUint(env.deluxe.ID, 10)+"&num_rooms=3", "", nil)
	if code != http.StatusOK || avail["min_available"].(float64) != 3 {
		t.Errorf("failed multi-room leaked deluxe inventory: %v", avail)
	}
}

func TestGetAndListBookings(t *testing.T) {
	env := newAPI(t)
	_, first := env.createBooking(env.deluxe.ID, 1, 2, 1)
	_, second := env.createBooking(env.suite.ID, 3, 4, 1)
	env.do(http.MethodPost, bookingPath(first, "/cancel"), env.desk, nil)

	code, body := env.do(http.MethodGet, bookingPath(second, ""), env.admin, nil)
	if code != http.StatusOK || body["room_type_id"].(float64) != float64(env.suite.ID) {
		t.Errorf("get = %d %v", code, body)
	}
	code, body = env.do(http.MethodGet, "/v1/bookings/9999", env.desk, nil)
	if code != http.StatusNotFound || body["code"] != "BOOKING_NOT_FOUND" {
		t.Errorf("missing = %d %v", code, body)
	}

	code, body = env.do(http.MethodGet, "/v1/bookings?status=confirmed", env.desk, nil)
	if code != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("list confirmed = %d %v", code, body)
	}
	code, body = env.do(http.MethodGet, "/v1/bookings?status=pending", env.desk, nil)
	if code != http.StatusBadRequest {
		t.Errorf("unknown status = %d %v", code, body)
	}
	code, _ = env.do(http.MethodGet, "/v1/bookings?limit=abc", env.desk, nil)
	if code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", code)
	}
}

func TestBookingRoutesRequireStaffToken(t *testing.T) {
	env := newAPI(t)
	if code, _ := env.do(http.MethodGet, "/v1/bookings", "", nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous list = %d", code)
	}
	if code, _ := env.do(http.MethodPost, "/v1/room-types/1/inventory/generate", env.desk, nil); code != http.StatusForbidden {
		t.Errorf("front desk generate = %d", code)
	}
	if code, _ := env.do(http.MethodPost, "/v1/staff", env.desk, map[string]any{}); code != http.StatusForbidden {
		t.Errorf("front desk staff = %d", code)
	}
}

func TestInventoryEndpoints(t *testing.T) {
	env := newAPI(t)

	code, body := env.do(http.MethodGet, "/v1/room-types", "", nil)
	if code != http.StatusOK || len(body["room_types"].([]any)) != 2 {
		t.Fatalf("room types = %d %v", code, body)
	}

	code, body = env.do(http.MethodGet, "/v1/availability?start="+env.date(0)+"&end="+env.date(3), "", nil)
	if code != http.StatusOK {
		t.Fatalf("summary = %d %v", code, body)
	}
	sums := body["availability"].([]any)
	if len(sums) != 2 {
		t.Fatalf("summary rows = %v", sums)
	}
	first := sums[0].(map[string]any)
	if first["room_type_name"] != "Deluxe" || len(first["daily_breakdown"].([]any)) != 3 {
		t.Errorf("summary = %v", first)
	}

	code, body = env.do(http.MethodGet, "/v1/availability?start="+env.date(3)+"&end="+env.date(1), "", nil)
	if code != http.StatusBadRequest || body["code"] != "INVALID_DATE_RANGE" {
		t.Errorf("reversed range = %d %v", code, body)
	}
	code, body = env.do(http.MethodGet, "/v1/availability?start="+env.date(1)+"&end="+env.date(3)+"&num_rooms=1", "", nil)
	if code != http.StatusBadRequest {
		t.Errorf("num_rooms without room type = %d %v", code, body)
	}

	path := "/v1/room-types/" + strconv.FormatUint(env.suite.ID, 10) + "/inventory/generate"
	code, body = env.do(http.MethodPost, path, env.admin, map[string]any{"days": 40})
	if code != http.StatusOK || body["created"].(float64) != 10 {
		t.Errorf("generate = %d %v", code, body)
	}
	code, body = env.do(http.MethodPost, "/v1/room-types/999/inventory/generate", env.admin, nil)
	if code != http.StatusNotFound {
		t.Errorf("generate unknown = %d %v", code, body)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newAPI(t)

	code, body := env.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "admin@hotel.test", "password": "wrong"})
	if code != http.StatusUnauthorized {
		t.Errorf("bad password = %d %v", code, body)
	}
	code, body = env.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "ADMIN@hotel.test", "password": "admin-password"})
	if code != http.StatusOK {
		t.Fatalf("login = %d %v", code, body)
	}
	access := body["access"].(map[string]any)["token"].(string)
	refresh := body["refresh"].(map[string]any)["token"].(string)

	code, body = env.do(http.MethodGet, "/v1/me", access, nil)
	if code != http.StatusOK || body["role"] != model.RoleAdmin {
		t.Errorf("me = %d %v", code, body)
	}

	code, body = env.do(http.MethodPost, "/v1/auth/refresh", "", map[string]any{"refresh_token": refresh})
	if code != http.StatusOK {
		t.Fatalf("refresh = %d %v", code, body)
	}
	rotated := body["refresh"].(map[string]any)["token"].(string)
	if code, _ := env.do(http.MethodPost, "/v1/auth/refresh", "", map[string]any{"refresh_token": refresh}); code != http.StatusUnauthorized {
		t.Errorf("reused refresh token = %d", code)
	}

	if code, _ := env.do(http.MethodPost, "/v1/auth/logout", "", map[string]any{"refresh_token": rotated}); code != http.StatusNoContent {
		t.Errorf("logout = %d", code)
	}
	if code, _ := env.do(http.MethodPost, "/v1/auth/refresh", "", map[string]any{"refresh_token": rotated}); code != http.StatusUnauthorized {
		t.Errorf("refresh after logout = %d", code)
	}
}

func TestCreateStaff(t *testing.T) {
	env := newAPI(t)

	code, body := env.do(http.MethodPost, "/v1/staff", env.admin, map[string]any{"email": "New@Hotel.test", "password": "long-enough"})
	if code != http.StatusCreated || body["role"] != model.RoleFrontDesk || body["email"] != "new@hotel.test" {
		t.Fatalf("create staff = %d %v", code, body)
	}
	code, _ = env.do(http.MethodPost, "/v1/staff", env.admin, map[string]any{"email": "new@hotel.test", "password": "long-enough"})
	if code != http.StatusConflict {
		t.Errorf("duplicate = %d", code)
	}
	code, body = env.do(http.MethodPost, "/v1/staff", env.admin, map[string]any{"email": "x@hotel.test", "password": "short", "role": "OWNER"})
	if code != http.StatusBadRequest || len(body["fields"].([]any)) != 2 {
		t.Errorf("invalid staff = %d %v", code, body)
	}
	code, body = env.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "new@hotel.test", "password": "long-enough"})
	if code != http.StatusOK {
		t.Errorf("new staff login = %d %v", code, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPI(t)
	env.createBooking(env.deluxe.ID, 1, 2, 1)

	code, body := env.do(http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", code, body)
	}

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hotel_booking_operations_total") {
		t.Errorf("metrics = %d %s", rec.Code, rec.Body)
	}
}

// unreadableBookings fails every committed booking read.
type unreadableBookings struct {
	*store.Memory
}

func (unreadableBookings) GetBooking(context.Context, uint64) (*model.Booking, error) {
	return nil, errors.New("booking read unavailable")
}

func TestCommittedBookingIsReportedWhenReloadFails(t *testing.T) {
	env := newAPIOver(t, func(m *store.Memory) store.Store { return unreadableBookings{m} })

	code, body := env.createBooking(env.deluxe.ID, 2, 4, 2)
	if code != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["status"] != "CONFIRMED" || body["id"].(float64) == 0 {
		t.Errorf("booking = %v", body)
	}
	assertDecimal(t, body["total_amount"], "400")

	if got := env.events.types(); len(got) != 1 || got[0] != queue.BookingCreated {
		t.Errorf("events = %v", got)
	}
	if len(env.cache.calls) != 1 {
		t.Errorf("invalidations = %v", env.cache.calls)
	}

	code, avail := env.do(http.MethodGet, "/v1/availability?start="+env.date(2)+"&end="+env.date(4)+
		"&room_type_id="+strconv.FormatUint(env.deluxe.ID, 10)+"&num_rooms=1", "", nil)
	if code != http.StatusOK || avail["min_available"].(float64) != 3 {
		t.Errorf("availability = %d %v", code, avail)
	}
}
