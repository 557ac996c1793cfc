package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/lycapay-backend/internal/config"
	"github.com/Ananth-NQI/lycapay-backend/internal/models"
	"github.com/Ananth-NQI/lycapay-backend/internal/storage"
)

const (
	testSender = "whatsapp:+256700111222"
	testPhone  = "256700111222"
)

type botFixture struct {
	t        *testing.T
	bot      *BotService
	store    storage.Store
	mem      *storage.MemoryStore
	api      *fakeReseller
	sessions *SessionStore
}

func newBotFixture(t *testing.T) *botFixture {
	return newBotFixtureWithStore(t, nil)
}

func newBotFixtureWithStore(t *testing.T, wrap func(*storage.MemoryStore) storage.Store) *botFixture {
	t.Helper()
	mem := storage.NewMemoryStore()
	var store storage.Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	api := newFakeReseller()
	sessions := NewSessionStore(store, 30*time.Minute)

	cfg := config.Default().Bot
	cfg.SupportEmail = "support@lycapay.test"
	bot := NewBotService(store, api, sessions, NewLedger(store), cfg)
	bot.pick = func(int) int { return 0 }
	n := 0
	bot.newTxnID = func() string {
		n++
		return fmt.Sprintf("LYCA_TEST_%d", n)
	}

	return &botFixture{t: t, bot: bot, store: store, mem: mem, api: api, sessions: sessions}
}

func (f *botFixture) send(body string) string {
	f.t.Helper()
	reply, err := f.bot.HandleMessage(context.Background(), testSender, body, "")
	require.NoError(f.t, err)
	return reply
}

func (f *botFixture) session() *ConversationSession {
	f.t.Helper()
	ctx := context.Background()
	user, err := f.mem.GetOrCreateUser(ctx, testPhone)
	require.NoError(f.t, err)
	s, err := f.sessions.Get(ctx, user.ID)
	require.NoError(f.t, err)
	return s
}

func (f *botFixture) transaction(id string) *models.Transaction {
	f.t.Helper()
	txn, err := f.mem.GetTransaction(context.Background(), id)
	require.NoError(f.t, err)
	return txn
}

func TestBot_BundlePurchaseRoundTrip(t *testing.T) {
	f := newBotFixture(t)

	reply := f.send("bundles")
	assert.Contains(t, reply, "Daily 1GB")
	assert.Contains(t, reply, "UGX 5,000")
	assert.Equal(t, models.StateSelectingBundle, f.session().State)

	reply = f.send("1")
	assert.Contains(t, reply, "Bundle Selected:* Daily 1GB")
	assert.Equal(t, models.StateAwaitingNumber, f.session().State)
	assert.Equal(t, models.ActionBundlePurchase, f.session().Action)

	reply = f.send("0772123456")
	assert.Contains(t, reply, "Purchase Confirmation")
	assert.Contains(t, reply, "256772123456")
	assert.Equal(t, models.StateConfirmingPurchase, f.session().State)

	reply = f.send("1")
	assert.Contains(t, reply, "Purchase Successful")
	assert.Contains(t, reply, "LYCA_TEST_1")
	assert.Equal(t, models.StateIdle, f.session().State)
	assert.Equal(t, models.Empty{}, f.session().Data)

	txn := f.transaction("LYCA_TEST_1")
	assert.Equal(t, models.TransactionStatusSuccess, txn.Status)
	assert.Equal(t, models.TransactionTypeBundle, txn.Type)
	assert.Equal(t, int64(1000), txn.Amount)
	assert.Equal(t, "256772123456", txn.SubscriptionID)
	require.NotNil(t, txn.ProviderTransactionID)
	assert.Equal(t, "AG-0001", *txn.ProviderTransactionID)
	assert.Equal(t, []string{"tok-daily"}, f.api.bundleCalls)
}

func TestBot_OutOfRangeBundleKeepsState(t *testing.T) {
	f := newBotFixture(t)
	f.send("bundles")

	reply := f.send("99")
	assert.Contains(t, reply, "between 1 and 3")
	assert.Equal(t, models.StateSelectingBundle, f.session().State)

	reply = f.send("two")
	assert.Contains(t, reply, "between 1 and 3")
	assert.Equal(t, models.StateSelectingBundle, f.session().State)

	reply = f.send("0")
	assert.Contains(t, reply, "between 1 and 3")
}

func TestBot_AirtimeBounds(t *testing.T) {
	f := newBotFixture(t)

	reply := f.send("airtime")
	assert.Contains(t, reply, "Min: UGX 500")
	assert.Equal(t, models.StateEnteringAmount, f.session().State)

	reply = f.send("499")
	assert.Contains(t, reply, "Minimum airtime amount is UGX 500")
	assert.Equal(t, models.StateEnteringAmount, f.session().State)

	reply = f.send("100001")
	assert.Contains(t, reply, "Maximum airtime amount is UGX 100,000")
	assert.Equal(t, models.StateEnteringAmount, f.session().State)

	reply = f.send("100000")
	assert.Contains(t, reply, "UGX 100,000")
	assert.Equal(t, models.StateAwaitingNumber, f.session().State)
	data, ok := f.session().Data.(models.NumberEntry)
	require.True(t, ok)
	assert.Equal(t, int64(100000), data.Amount)
}

func TestBot_AirtimeAmountParsing(t *testing.T) {
	f := newBotFixture(t)
	f.send("2")
	f.send("UGX 2,000")

	data, ok := f.session().Data.(models.NumberEntry)
	require.True(t, ok)
	assert.Equal(t, int64(2000), data.Amount)
}

func TestBot_InvalidNumberReprompts(t *testing.T) {
	f := newBotFixture(t)
	f.send("airtime")
	f.send("1000")

	reply := f.send("12345")
	assert.Contains(t, reply, "Invalid Uganda mobile number")
	assert.Equal(t, models.StateAwaitingNumber, f.session().State)
}

func TestBot_TransportFailureMarksTransactionFailed(t *testing.T) {
	f := newBotFixture(t)
	f.api.purchaseErr = &TransportError{Endpoint: endpointPurchaseAirtime, Attempts: 3, Err: errors.New("connection refused")}

	f.send("airtime")
	f.send("2000")
	f.send("+256772123456")
	reply := f.send("yes")

	assert.Contains(t, reply, "Purchase Failed")
	assert.Contains(t, reply, "LYCA_TEST_1")
	assert.Contains(t, reply, MsgTechnicalDifficulty)
	assert.Equal(t, models.StateIdle, f.session().State)

	txn := f.transaction("LYCA_TEST_1")
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)
	require.NotNil(t, txn.ErrorMessage)
	assert.NotEmpty(t, *txn.ErrorMessage)
	assert.NotNil(t, txn.CompletedAt)
}

func TestBot_BusinessFailureTranslatesCode(t *testing.T) {
	f := newBotFixture(t)
	f.api.purchaseErr = &APIError{Code: "-10030", Message: TranslateErrorCode("-10030")}

	f.send("bundles")
	f.send("2")
	f.send("0772123456")
	reply := f.send("1")

	assert.Contains(t, reply, TranslateErrorCode("-10030"))
	assert.NotContains(t, reply, "-10030")

	txn := f.transaction("LYCA_TEST_1")
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)
	require.NotNil(t, txn.ErrorCode)
	assert.Equal(t, "-10030", *txn.ErrorCode)
}

func TestBot_SavedNumbersOffered(t *testing.T) {
	f := newBotFixture(t)
	f.api.subscribers["256772123456"] = &SubscriberInfo{SubscriptionID: "256772123456", FirstName: "Jane", LastName: "Doe"}

	f.send("bundles")
	f.send("1")
	reply := f.send("0772123456")
	assert.Contains(t, reply, "Subscriber:* Jane Doe")
	f.send("1")

	f.send("bundles")
	reply = f.send("2")
	assert.Contains(t, reply, "256772123456 (Jane Doe)")
	assert.Contains(t, reply, "'new'")
	assert.Equal(t, models.StateSelectingSavedNumber, f.session().State)

	reply = f.send("4")
	assert.Contains(t, reply, "between 1 and 1")
	assert.Equal(t, models.StateSelectingSavedNumber, f.session().State)

	lookups := f.api.lookups
	reply = f.send("1")
	assert.Contains(t, reply, "Weekly 5GB")
	assert.Contains(t, reply, "Jane Doe")
	assert.Equal(t, lookups+1, f.api.lookups, "saved number is looked up again before confirming")
	assert.Equal(t, models.StateConfirmingPurchase, f.session().State)
}

func TestBot_SavedNumberRefreshedOnReuse(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.mem.SetClock(func() time.Time { return clock })

	user, err := f.mem.GetOrCreateUser(ctx, testPhone)
	require.NoError(t, err)
	require.NoError(t, f.mem.UpsertSavedNumber(ctx, &models.SavedNumber{UserID: user.ID, SubscriptionID: "256772000001", FirstName: "Jane", LastName: "Doe"}))
	clock = clock.Add(time.Minute)
	require.NoError(t, f.mem.UpsertSavedNumber(ctx, &models.SavedNumber{UserID: user.ID, SubscriptionID: "256772000002", FirstName: "Bob", LastName: "Roe"}))
	clock = clock.Add(time.Minute)

	f.api.subscribers["256772000001"] = &SubscriberInfo{SubscriptionID: "256772000001", FirstName: "Jane", LastName: "Smith"}
	f.api.subscribers["256772000002"] = &SubscriberInfo{SubscriptionID: "256772000002", FirstName: "Bob", LastName: "Roe"}

	f.send("bundles")
	reply := f.send("1")
	assert.Contains(t, reply, "1️⃣ 256772000002 (Bob Roe)")
	assert.Contains(t, reply, "2️⃣ 256772000001 (Jane Doe)")

	reply = f.send("2")
	assert.Contains(t, reply, "Jane Smith")
	assert.NotContains(t, reply, "Jane Doe")
	f.send("1")

	f.send("bundles")
	reply = f.send("1")
	assert.Contains(t, reply, "1️⃣ 256772000001 (Jane Smith)")
	assert.Contains(t, reply, "2️⃣ 256772000002 (Bob Roe)")
}

func TestBot_SavedNumberLookupFailureKeepsKnownName(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	user, err := f.mem.GetOrCreateUser(ctx, testPhone)
	require.NoError(t, err)
	require.NoError(t, f.mem.UpsertSavedNumber(ctx, &models.SavedNumber{UserID: user.ID, SubscriptionID: "256772000001", FirstName: "Jane", LastName: "Doe"}))

	f.send("bundles")
	f.send("1")
	f.api.lookupErr = &APIError{Code: "-10002", Message: "Invalid subscription"}

	reply := f.send("1")
	assert.Contains(t, reply, "Jane Doe")
	assert.Equal(t, models.StateConfirmingPurchase, f.session().State)
}

func TestBot_SavedNumberNewCarriesSelection(t *testing.T) {
	f := newBotFixture(t)
	require.NoError(t, f.mem.UpsertSavedNumber(context.Background(), &models.SavedNumber{UserID: 1, SubscriptionID: "256772123456"}))

	f.send("airtime")
	reply := f.send("5000")
	assert.Contains(t, reply, "256772123456 (Unknown)")

	f.send("new")
	assert.Equal(t, models.StateAwaitingNumber, f.session().State)
	assert.Equal(t, models.ActionAirtimePurchase, f.session().Action)

	reply = f.send("0701234567")
	assert.Contains(t, reply, "Airtime Purchase Confirmation")
	assert.Contains(t, reply, "UGX 5,000")
	assert.Contains(t, reply, "256701234567")
	assert.Equal(t, models.StateConfirmingAirtime, f.session().State)
}

func TestBot_UniversalKeywords(t *testing.T) {
	f := newBotFixture(t)

	f.send("bundles")
	assert.Equal(t, MsgCancelled, f.send("CANCEL"))
	assert.Equal(t, models.StateIdle, f.session().State)

	f.send("airtime")
	assert.Contains(t, f.send(" menu "), "Main Menu")
	assert.Equal(t, models.StateIdle, f.session().State)

	f.send("airtime")
	assert.Equal(t, MsgCancelled, f.send("stop"))
	assert.Equal(t, models.StateIdle, f.session().State)
}

func TestBot_ConfirmationAnswers(t *testing.T) {
	f := newBotFixture(t)
	f.send("airtime")
	f.send("1000")
	f.send("0772123456")

	assert.Equal(t, MsgConfirmChoice, f.send("maybe"))
	assert.Equal(t, models.StateConfirmingAirtime, f.session().State)

	assert.Equal(t, MsgPurchaseCancelled, f.send("no"))
	assert.Equal(t, models.StateIdle, f.session().State)
	assert.Empty(t, f.api.airtimeCalls)
}

func TestBot_SubscriberLookupFailureIsNonFatal(t *testing.T) {
	f := newBotFixture(t)
	f.api.lookupErr = &APIError{Code: "-10002", Message: TranslateErrorCode("-10002")}

	f.send("airtime")
	f.send("1000")
	reply := f.send("0772123456")
	assert.Contains(t, reply, "Airtime Purchase Confirmation")
	assert.NotContains(t, reply, "Subscriber:")
	assert.Equal(t, models.StateConfirmingAirtime, f.session().State)

	count, err := f.mem.CountSavedNumbers(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBot_DirectNumberFlows(t *testing.T) {
	f := newBotFixture(t)
	f.api.subscribers["256772123456"] = &SubscriberInfo{SubscriptionID: "256772123456", FirstName: "Jane", LastName: "Doe"}

	reply := f.send("0772 123 456")
	assert.Contains(t, reply, "Subscriber Info")
	assert.Contains(t, reply, "Jane Doe")
	assert.Equal(t, models.StateNumberSelected, f.session().State)

	reply = f.send("what")
	assert.Contains(t, reply, "What would you like to buy")
	assert.Equal(t, models.StateNumberSelected, f.session().State)

	f.send("2")
	assert.Equal(t, models.StateEnteringAmountForNumber, f.session().State)
	reply = f.send("50")
	assert.Contains(t, reply, "Minimum airtime amount")
	assert.Equal(t, models.StateEnteringAmountForNumber, f.session().State)

	reply = f.send("2,000")
	assert.Contains(t, reply, "Airtime Purchase Confirmation")
	assert.Contains(t, reply, "Jane Doe")

	reply = f.send("1")
	assert.Contains(t, reply, "Airtime Top-up Successful")
	assert.Equal(t, []int64{2000}, f.api.airtimeCalls)

	f.send("256772123456")
	reply = f.send("bundles")
	assert.Contains(t, reply, "Data Bundles for 256772123456")
	assert.Equal(t, models.StateSelectingBundleForNumber, f.session().State)

	reply = f.send("7")
	assert.Contains(t, reply, "between 1 and 3")

	reply = f.send("3")
	assert.Contains(t, reply, "Monthly 20GB")
	assert.Equal(t, models.StateConfirmingPurchase, f.session().State)
}

func TestBot_DirectNumberLookupFailure(t *testing.T) {
	f := newBotFixture(t)
	f.api.lookupErr = &APIError{Code: "-10002", Message: TranslateErrorCode("-10002")}

	reply := f.send("0772123456")
	assert.Contains(t, reply, TranslateErrorCode("-10002"))
	assert.Equal(t, models.StateIdle, f.session().State)
}

func TestBot_DuplicateConfirmationIsNotResubmitted(t *testing.T) {
	f := newBotFixture(t)
	f.send("airtime")
	f.send("1000")
	f.send("0772123456")

	// a transaction with the confirmation's id already exists
	require.NoError(t, f.mem.CreateTransaction(context.Background(), &models.Transaction{
		TransactionID: "LYCA_TEST_1", UserID: 1, Type: models.TransactionTypeAirtime, Amount: 1000, SubscriptionID: "256772123456",
	}))

	reply := f.send("1")
	assert.Contains(t, reply, "already being processed")
	assert.Empty(t, f.api.airtimeCalls)
	assert.Equal(t, models.StateIdle, f.session().State)
}

func TestBot_HourlyRechargeLimit(t *testing.T) {
	f := newBotFixture(t)
	f.bot.cfg.MaxRechargePerHour = 1

	f.send("airtime")
	f.send("1000")
	f.send("0772123456")
	assert.Contains(t, f.send("1"), "Successful")

	f.send("airtime")
	f.send("1000")
	f.send("1") // saved number
	reply := f.send("1")
	assert.Contains(t, reply, "limit of 1 recharges per hour")
	assert.Len(t, f.api.airtimeCalls, 1)
	assert.Equal(t, models.StateIdle, f.session().State)
}

func TestBot_IdleCommands(t *testing.T) {
	f := newBotFixture(t)

	assert.Contains(t, f.send("Hi"), "Welcome to LycaPay")
	assert.Contains(t, f.send("help"), "LycaPay Main Menu")
	assert.Contains(t, f.send("balance"), "UGX 250,000")
	assert.Equal(t, MsgNoHistory, f.send("history"))
	assert.Contains(t, f.send("4"), "support@lycapay.test")
	assert.Equal(t, unknownCommandReplies[0], f.send("gibberish"))

	f.send("airtime")
	f.send("3000")
	f.send("0772123456")
	f.send("1")

	history := f.send("3")
	assert.Contains(t, history, "LYCA_TEST_1")
	assert.Contains(t, history, "UGX 3,000")

	profile := f.send("profile")
	assert.Contains(t, profile, "Total transactions: 1")
	assert.Contains(t, profile, "Successful: 1")
	assert.Contains(t, profile, "Total spent: UGX 3,000")
	assert.Contains(t, profile, "Saved numbers: 1")

	f.api.balanceErr = errors.New("down")
	assert.Equal(t, MsgBalanceFailed, f.send("balance"))

	f.api.plansErr = errors.New("down")
	assert.Equal(t, MsgBundlesFailed, f.send("bundles"))
	assert.Equal(t, models.StateIdle, f.session().State)
}

func TestBot_MessagesAreLogged(t *testing.T) {
	f := newBotFixture(t)
	_, err := f.bot.HandleMessage(context.Background(), testSender, "hi", "SM42")
	require.NoError(t, err)

	logs := f.mem.MessageLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, models.DirectionIncoming, logs[0].Direction)
	assert.Equal(t, "SM42", logs[0].MessageID)
	assert.Equal(t, testPhone, logs[0].Phone)
	assert.Equal(t, models.DirectionOutgoing, logs[1].Direction)
	assert.Contains(t, logs[1].Body, "Welcome")
}

// failingTxnStore refuses to create transactions.
type failingTxnStore struct {
	*storage.MemoryStore
}

func (failingTxnStore) CreateTransaction(context.Context, *models.Transaction) error {
	return errors.New("database is down")
}

func TestBot_RequiredWriteFailureApologises(t *testing.T) {
	f := newBotFixtureWithStore(t, func(m *storage.MemoryStore) storage.Store {
		return failingTxnStore{m}
	})
	f.send("airtime")
	f.send("1000")
	f.send("0772123456")

	reply, err := f.bot.HandleMessage(context.Background(), testSender, "1", "")
	require.Error(t, err)
	assert.Equal(t, MsgApology, reply)
	assert.Empty(t, f.api.airtimeCalls)
	assert.Equal(t, models.StateIdle, f.session().State)
}
