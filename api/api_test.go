package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/yappynotes/server/api/validator"
)

// newTestAPI wires an API with the given fakes and test-scoped logging.
func newTestAPI(t *testing.T, db *testdb, cache *testcache, push *testpush) *API {
	t.Helper()
	if db == nil {
		db = &testdb{}
	}
	db.T = t
	if cache == nil {
		cache = &testcache{}
	}
	cache.T = t
	if push == nil {
		push = &testpush{}
	}
	push.T = t
	return &API{
		Logger: slogt.New(t),
		DB:     db,
		Cache:  cache,
		Push:   push,
		Val:    validator.New(),
	}
}

// testdb is a func-field fake of the DB interface. Calls without a
// configured func fail the test: a handler must only touch storage the test
// expects it to.
type testdb struct {
	T *testing.T

	listUsers      func(t *testing.T) ([]User, error)
	getUser        func(t *testing.T, id string) (User, error)
	findUserByName func(t *testing.T, name string) (User, error)
	countUsers     func(t *testing.T) (int, error)
	hasAdmin       func(t *testing.T) (bool, error)
	insertUser     func(t *testing.T, u User) (User, error)
	deleteUser     func(t *testing.T, id string) error
	deleteAllUsers func(t *testing.T) error
	setAdmin       func(t *testing.T, id string) error

	listMessages      func(t *testing.T, page MessagePage) ([]Message, error)
	getMessage        func(t *testing.T, id string) (Message, error)
	insertMessage     func(t *testing.T, msg Message) (Message, error)
	hideMessage       func(t *testing.T, messageID, userID string) error
	hideAllMessages   func(t *testing.T, userID string) error
	deleteAllMessages func(t *testing.T) error
	toggleReaction    func(t *testing.T, messageID, userID, emoji string) ([]Reaction, error)
	markSeen          func(t *testing.T, userID string, at time.Time) (int, error)

	getConfig func(t *testing.T, key string) (string, error)
	setConfig func(t *testing.T, key, value string) error

	upsertSubscription func(t *testing.T, sub PushSubscription) error
	listSubscribersOf  func(t *testing.T, senderUserID string) ([]PushSubscription, error)
}

func (db *testdb) ListUsers(_ context.Context) ([]User, error) {
	if db.listUsers == nil {
		db.T.Fatal("unexpected call to ListUsers")
	}
	return db.listUsers(db.T)
}

func (db *testdb) GetUser(_ context.Context, id string) (User, error) {
	if db.getUser == nil {
		db.T.Fatalf("unexpected call to GetUser(%q)", id)
	}
	return db.getUser(db.T, id)
}

func (db *testdb) FindUserByName(_ context.Context, name string) (User, error) {
	if db.findUserByName == nil {
		db.T.Fatalf("unexpected call to FindUserByName(%q)", name)
	}
	return db.findUserByName(db.T, name)
}

func (db *testdb) CountUsers(_ context.Context) (int, error) {
	if db.countUsers == nil {
		db.T.Fatal("unexpected call to CountUsers")
	}
	return db.countUsers(db.T)
}

func (db *testdb) HasAdmin(_ context.Context) (bool, error) {
	if db.hasAdmin == nil {
		db.T.Fatal("unexpected call to HasAdmin")
	}
	return db.hasAdmin(db.T)
}

func (db *testdb) InsertUser(_ context.Context, u User) (User, error) {
	if db.insertUser == nil {
		db.T.Fatalf("unexpected call to InsertUser(%q)", u.Name)
	}
	return db.insertUser(db.T, u)
}

func (db *testdb) DeleteUser(_ context.Context, id string) error {
	if db.deleteUser == nil {
		db.T.Fatalf("unexpected call to DeleteUser(%q)", id)
	}
	return db.deleteUser(db.T, id)
}

func (db *testdb) DeleteAllUsers(_ context.Context) error {
	if db.deleteAllUsers == nil {
		db.T.Fatal("unexpected call to DeleteAllUsers")
	}
	return db.deleteAllUsers(db.T)
}

func (db *testdb) SetAdmin(_ context.Context, id string) error {
	if db.setAdmin == nil {
		db.T.Fatalf("unexpected call to SetAdmin(%q)", id)
	}
	return db.setAdmin(db.T, id)
}

func (db *testdb) ListMessages(_ context.Context, page MessagePage) ([]Message, error) {
	if db.listMessages == nil {
		db.T.Fatal("unexpected call to ListMessages")
	}
	return db.listMessages(db.T, page)
}

func (db *testdb) GetMessage(_ context.Context, id string) (Message, error) {
	if db.getMessage == nil {
		db.T.Fatalf("unexpected call to GetMessage(%q)", id)
	}
	return db.getMessage(db.T, id)
}

func (db *testdb) InsertMessage(_ context.Context, msg Message) (Message, error) {
	if db.insertMessage == nil {
		db.T.Fatal("unexpected call to InsertMessage")
	}
	return db.insertMessage(db.T, msg)
}

func (db *testdb) HideMessage(_ context.Context, messageID, userID string) error {
	if db.hideMessage == nil {
		db.T.Fatalf("unexpected call to HideMessage(%q, %q)", messageID, userID)
	}
	return db.hideMessage(db.T, messageID, userID)
}

func (db *testdb) HideAllMessages(_ context.Context, userID string) error {
	if db.hideAllMessages == nil {
		db.T.Fatalf("unexpected call to HideAllMessages(%q)", userID)
	}
	return db.hideAllMessages(db.T, userID)
}

func (db *testdb) DeleteAllMessages(_ context.Context) error {
	if db.deleteAllMessages == nil {
		db.T.Fatal("unexpected call to DeleteAllMessages")
	}
	return db.deleteAllMessages(db.T)
}

func (db *testdb) ToggleReaction(_ context.Context, messageID, userID, emoji string) ([]Reaction, error) {
	if db.toggleReaction == nil {
		db.T.Fatalf("unexpected call to ToggleReaction(%q, %q, %q)", messageID, userID, emoji)
	}
	return db.toggleReaction(db.T, messageID, userID, emoji)
}

func (db *testdb) MarkSeen(_ context.Context, userID string, at time.Time) (int, error) {
	if db.markSeen == nil {
		db.T.Fatalf("unexpected call to MarkSeen(%q)", userID)
	}
	return db.markSeen(db.T, userID, at)
}

func (db *testdb) GetConfig(_ context.Context, key string) (string, error) {
	if db.getConfig == nil {
		db.T.Fatalf("unexpected call to GetConfig(%q)", key)
	}
	return db.getConfig(db.T, key)
}

func (db *testdb) SetConfig(_ context.Context, key, value string) error {
	if db.setConfig == nil {
		db.T.Fatalf("unexpected call to SetConfig(%q)", key)
	}
	return db.setConfig(db.T, key, value)
}

func (db *testdb) UpsertSubscription(_ context.Context, sub PushSubscription) error {
	if db.upsertSubscription == nil {
		db.T.Fatalf("unexpected call to UpsertSubscription(%q)", sub.Endpoint)
	}
	return db.upsertSubscription(db.T, sub)
}

func (db *testdb) ListSubscribersOf(_ context.Context, senderUserID string) ([]PushSubscription, error) {
	if db.listSubscribersOf == nil {
		db.T.Fatalf("unexpected call to ListSubscribersOf(%q)", senderUserID)
	}
	return db.listSubscribersOf(db.T, senderUserID)
}

// testcache is a func-field fake of the Cache interface. Unlike testdb its
// methods default to no-ops: most handler tests do not care about caching.
type testcache struct {
	T *testing.T

	listMessages  func(t *testing.T) ([]Message, error)
	insertMessage func(t *testing.T, msg Message) error
	flush         func(t *testing.T) error
}

func (c *testcache) ListMessages(_ context.Context) ([]Message, error) {
	if c.listMessages == nil {
		return nil, nil
	}
	return c.listMessages(c.T)
}

func (c *testcache) InsertMessage(_ context.Context, msg Message) error {
	if c.insertMessage == nil {
		return nil
	}
	return c.insertMessage(c.T, msg)
}

func (c *testcache) Flush(_ context.Context) error {
	if c.flush == nil {
		return nil
	}
	return c.flush(c.T)
}

// testpush is a fake Pusher. The zero value is unconfigured.
type testpush struct {
	T *testing.T

	configured bool
	publicKey  string
	send       func(t *testing.T, sub PushSubscription, n Notification) error
}

func (p *testpush) Configured() bool {
	return p.configured
}

func (p *testpush) PublicKey() string {
	return p.publicKey
}

func (p *testpush) Send(_ context.Context, sub PushSubscription, n Notification) error {
	if p.send == nil {
		p.T.Fatalf("unexpected call to Send(%q)", sub.Endpoint)
	}
	return p.send(p.T, sub, n)
}

func checkStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("Got HTTP status %d, want %d", got, want)
	}
}

func checkBody(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	gotBody := normalizeJSON(t, resp.Body)
	wantBody := normalizeJSON(t, bytes.NewReader([]byte(want)))
	if gotBody != wantBody {
		t.Errorf("Body does not match\nGot\n  %s\n\nWant\n  %s", gotBody, wantBody)
	}
}

func normalizeJSON(t *testing.T, r io.Reader) string {
	t.Helper()
	var buf bytes.Buffer
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Could not read JSON: %v", err)
	}
	if err := json.Indent(&buf, b, "  ", "  "); err != nil {
		t.Fatalf("Could not indent JSON: %v", err)
	}
	return strings.TrimSpace(buf.String())
}
