// internal/app/fakes_test.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"birthday_notification_service/internal/domain/delivery"
	"birthday_notification_service/internal/domain/lock"
	"birthday_notification_service/internal/domain/queue"
	"birthday_notification_service/internal/domain/recipient"
	"birthday_notification_service/internal/domain/trigger"
	idb "birthday_notification_service/internal/infra/database"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

func testLogEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newScanService(dir recipient.Directory, led delivery.Ledger, prod queue.Producer, lk lock.Locker, clk clockwork.Clock) *ScanServiceImpl {
	return NewScanServiceImpl(dir, led, prod, lk, clk, testLogEntry(),
		trigger.DefaultTarget, 50*time.Second, 30*time.Second)
}

func newDispatchService(led delivery.Ledger, cons queue.Consumer, not *fakeNotifier, lk lock.Locker, clk clockwork.Clock) *DispatchServiceImpl {
	return NewDispatchServiceImpl(led, cons, not, lk, clk, testLogEntry(),
		5, delivery.DefaultBackoffSchedule, 90*time.Second, 1, 16)
}

func newReconcileService(led delivery.Ledger, prod queue.Producer, lk lock.Locker, clk clockwork.Clock) *ReconcileServiceImpl {
	return NewReconcileServiceImpl(led, prod, lk, clk, testLogEntry(), 5, 4*time.Minute)
}

// --- Directory Fake ---

type fakeDirectory struct {
	mu           sync.Mutex
	recipients   []*recipient.Recipient
	tzCalls      int
	findCalls    int
	timezonesErr error
	findErr      error
}

func (f *fakeDirectory) FindByBirthday(_ context.Context, month, day int, timezones []string) ([]*recipient.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	zones := make(map[string]bool, len(timezones))
	for _, z := range timezones {
		zones[z] = true
	}
	var out []*recipient.Recipient
	for _, r := range f.recipients {
		if r.BirthMonth == month && r.BirthDay == day && zones[r.Timezone] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDirectory) DistinctTimezones(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tzCalls++
	if f.timezonesErr != nil {
		return nil, f.timezonesErr
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range f.recipients {
		if !seen[r.Timezone] {
			seen[r.Timezone] = true
			out = append(out, r.Timezone)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- Ledger Fake ---

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*delivery.Record
	nextID  int
	sentErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]*delivery.Record)}
}

func (f *fakeLedger) put(rec *delivery.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = rec
}

func (f *fakeLedger) get(id string) *delivery.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id]
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeLedger) CreateIfAbsent(_ context.Context, rec *delivery.Record) (*delivery.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if existing.RecipientID == rec.RecipientID && existing.TargetYear == rec.TargetYear {
			return nil, nil
		}
	}
	f.nextID++
	stored := &delivery.Record{
		ID:           fmt.Sprintf("delivery-%d", f.nextID),
		RecipientID:  rec.RecipientID,
		TargetYear:   rec.TargetYear,
		Status:       delivery.StatusPending,
		ScheduledFor: rec.ScheduledFor,
	}
	f.records[stored.ID] = stored
	return stored, nil
}

func (f *fakeLedger) MarkQueued(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return idb.ErrRecordNotFound
	}
	if rec.Status != delivery.StatusPending {
		return fmt.Errorf("%w: cannot move from %s to %s", idb.ErrIllegalTransition, rec.Status, delivery.StatusQueued)
	}
	rec.Status = delivery.StatusQueued
	return nil
}

func (f *fakeLedger) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sentErr != nil {
		return f.sentErr
	}
	rec, ok := f.records[id]
	if !ok {
		return idb.ErrRecordNotFound
	}
	if rec.Status == delivery.StatusSent {
		return fmt.Errorf("%w: cannot move from %s to %s", idb.ErrIllegalTransition, rec.Status, delivery.StatusSent)
	}
	rec.Status = delivery.StatusSent
	rec.SentAt = sql.NullTime{Time: sentAt, Valid: true}
	return nil
}

func (f *fakeLedger) MarkFailed(_ context.Context, id string, lastError string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return 0, idb.ErrRecordNotFound
	}
	if rec.Status == delivery.StatusSent {
		return 0, fmt.Errorf("%w: cannot move from %s to %s", idb.ErrIllegalTransition, rec.Status, delivery.StatusFailed)
	}
	rec.Status = delivery.StatusFailed
	rec.LastError = sql.NullString{String: lastError, Valid: true}
	rec.AttemptCount++
	return rec.AttemptCount, nil
}

func (f *fakeLedger) MarkPending(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return idb.ErrRecordNotFound
	}
	if rec.Status != delivery.StatusFailed {
		return fmt.Errorf("%w: cannot move from %s to %s", idb.ErrIllegalTransition, rec.Status, delivery.StatusPending)
	}
	rec.Status = delivery.StatusPending
	return nil
}

func (f *fakeLedger) FindByID(_ context.Context, id string) (*delivery.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, idb.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeLedger) ListPendingDue(_ context.Context, now time.Time) ([]*delivery.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*delivery.Record
	for _, rec := range f.records {
		if rec.Status == delivery.StatusPending && !rec.ScheduledFor.After(now) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLedger) ListRetryableFailed(_ context.Context, maxAttempts int) ([]*delivery.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*delivery.Record
	for _, rec := range f.records {
		if rec.Status == delivery.StatusFailed && rec.AttemptCount < maxAttempts {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Producer Fake ---

type fakeProducer struct {
	mu       sync.Mutex
	messages []queue.Message
	err      error
}

func (f *fakeProducer) Enqueue(_ context.Context, msg queue.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeProducer) sent() []queue.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.Message(nil), f.messages...)
}

// --- Locker Fake ---

type fakeLocker struct {
	mu         sync.Mutex
	held       map[string]bool
	denied     map[string]bool
	acquireErr error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool), denied: make(map[string]bool)}
}

func (f *fakeLocker) deny(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[key] = true
}

func (f *fakeLocker) heldKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.held {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.denied[key] || f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}

// --- Notifier Fake ---

type sentGreeting struct {
	email   string
	message string
}

// fakeNotifier fails each send with the scripted error for its position;
// sends past the end of the script succeed.
type fakeNotifier struct {
	mu    sync.Mutex
	sends []sentGreeting
	errs  []error
}

func (f *fakeNotifier) Send(_ context.Context, email, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.sends)
	f.sends = append(f.sends, sentGreeting{email: email, message: message})
	if idx < len(f.errs) {
		return f.errs[idx]
	}
	return nil
}

func (f *fakeNotifier) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

// --- Queue Entry and Consumer Fakes ---

type fakeQueueEntry struct {
	mu      sync.Mutex
	msg     queue.Message
	acked   bool
	dead    bool
	retries []time.Duration
}

func entryFor(rec *delivery.Record) *fakeQueueEntry {
	return &fakeQueueEntry{msg: queue.Message{
		DeliveryID:  rec.ID,
		RecipientID: rec.RecipientID,
		Email:       rec.RecipientEmail,
		DisplayName: rec.RecipientName,
	}}
}

func (f *fakeQueueEntry) Message() queue.Message { return f.msg }

func (f *fakeQueueEntry) Ack() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeQueueEntry) Retry(delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries = append(f.retries, delay)
	return nil
}

func (f *fakeQueueEntry) DeadLetter(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead = true
	return nil
}

// fakeConsumer serves scripted batches one Fetch at a time and invokes
// onEmpty once the script runs out, which tests use to stop the loop.
type fakeConsumer struct {
	mu      sync.Mutex
	batches [][]queue.Delivery
	onEmpty func()
}

func (f *fakeConsumer) Fetch(_ context.Context, _ int) ([]queue.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		if f.onEmpty != nil {
			f.onEmpty()
		}
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}
