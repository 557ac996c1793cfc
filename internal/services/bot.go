package services

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ananth-NQI/lycapay-backend/internal/config"
	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/models"
	"github.com/Ananth-NQI/lycapay-backend/internal/storage"
	"github.com/Ananth-NQI/lycapay-backend/internal/utils"
)

// BotService is the conversation engine: it maps (session state, input) to a
// reply, session transitions and purchase side effects.
type BotService struct {
	store    storage.Store
	api      ResellerAPI
	sessions *SessionStore
	ledger   *Ledger
	cfg      config.BotConfig

	now      func() time.Time
	newTxnID func() string
	pick     func(n int) int
	log      *logrus.Entry
}

// NewBotService wires the engine to its collaborators.
func NewBotService(store storage.Store, api ResellerAPI, sessions *SessionStore, ledger *Ledger, cfg config.BotConfig) *BotService {
	if cfg.Name == "" {
		cfg.Name = "LycaPay"
	}
	if cfg.MinAirtimeAmount <= 0 {
		cfg.MinAirtimeAmount = 500
	}
	if cfg.MaxAirtimeAmount <= 0 || cfg.MaxAirtimeAmount > config.HardMaxAirtimeAmount {
		cfg.MaxAirtimeAmount = config.HardMaxAirtimeAmount
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.SavedNumbersLimit <= 0 {
		cfg.SavedNumbersLimit = 5
	}
	return &BotService{
		store:    store,
		api:      api,
		sessions: sessions,
		ledger:   ledger,
		cfg:      cfg,
		now:      time.Now,
		newTxnID: utils.GenerateTransactionID,
		pick:     rand.Intn,
		log:      logging.WithComponent("bot"),
	}
}

// turn carries the per-message context through the handlers.
type turn struct {
	user    *models.User
	session *ConversationSession
	input   string
	command string
}

// HandleMessage processes one inbound message and returns the reply text.
// A non-nil error is always accompanied by a user-facing apology reply.
func (b *BotService) HandleMessage(ctx context.Context, sender, body, messageID string) (string, error) {
	phone := utils.CanonicalSender(sender)
	entry := b.log.WithFields(logrus.Fields{"from": phone, "message_id": messageID})
	entry.WithField("body", body).Info("Processing message")

	b.logMessage(ctx, phone, models.DirectionIncoming, body, messageID)

	reply, err := b.process(ctx, phone, body)
	if err != nil {
		entry.WithError(err).Error("Error processing message")
		reply = MsgApology
	}

	b.logMessage(ctx, phone, models.DirectionOutgoing, reply, "")
	return reply, err
}

func (b *BotService) process(ctx context.Context, phone, body string) (string, error) {
	user, err := b.store.GetOrCreateUser(ctx, phone)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := b.store.TouchUser(ctx, user.ID, b.now()); err != nil {
			b.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to update user activity")
		}
	}()

	session, err := b.sessions.Get(ctx, user.ID)
	if err != nil {
		return "", err
	}

	input := strings.TrimSpace(body)
	t := &turn{
		user:    user,
		session: session,
		input:   input,
		command: strings.ToLower(input),
	}

	reply, err := b.dispatch(ctx, t)
	if err != nil {
		// required write failed mid-flow; leave the user in a clean state if we can
		b.reset(ctx, user.ID)
		return "", err
	}
	return reply, nil
}

func (b *BotService) dispatch(ctx context.Context, t *turn) (string, error) {
	if t.session.State == models.StateIdle {
		return b.handleIdle(ctx, t)
	}

	switch t.command {
	case "cancel", "stop":
		b.reset(ctx, t.user.ID)
		return MsgCancelled, nil
	case "menu":
		b.reset(ctx, t.user.ID)
		return mainMenu(b.cfg.Name), nil
	}

	switch data := t.session.Data.(type) {
	case models.BundleSelection:
		return b.handleBundleSelection(ctx, t, data)
	case models.NumberEntry:
		return b.handleNumberInput(ctx, t, data)
	case models.SavedNumberChoice:
		return b.handleSavedNumberSelection(ctx, t, data)
	case models.PurchaseConfirmation:
		return b.handleConfirmation(ctx, t, data)
	case models.NumberContext:
		switch t.session.State {
		case models.StateNumberSelected:
			return b.handleNumberSelected(ctx, t, data)
		case models.StateSelectingBundleForNumber:
			return b.handleBundleForNumber(ctx, t, data)
		case models.StateEnteringAmountForNumber:
			return b.handleAmountForNumber(ctx, t, data)
		}
	case models.Empty:
		if t.session.State == models.StateEnteringAmount {
			return b.handleAmountInput(ctx, t)
		}
	}

	b.log.WithField("state", t.session.State).Warn("No handler for session state")
	b.reset(ctx, t.user.ID)
	return MsgStartOver, nil
}

func (b *BotService) handleIdle(ctx context.Context, t *turn) (string, error) {
	switch t.command {
	case "start", "hello", "hi":
		return welcomeMessage(b.cfg.Name, t.user.DisplayName), nil
	case "menu", "help":
		return mainMenu(b.cfg.Name), nil
	case "cancel", "stop":
		b.reset(ctx, t.user.ID)
		return MsgCancelled, nil
	case "balance":
		return b.checkBalance(ctx), nil
	case "bundles", "1":
		return b.showBundles(ctx, t), nil
	case "airtime", "2":
		b.transition(ctx, t.user.ID, models.StateEnteringAmount, models.ActionAirtimePurchase, models.Empty{})
		return airtimeOptionsMessage(b.cfg.MinAirtimeAmount, b.cfg.MaxAirtimeAmount), nil
	case "history", "3":
		return b.showHistory(ctx, t), nil
	case "support", "4":
		return supportMessage(b.cfg.Name, b.cfg.SupportEmail, b.cfg.SupportPhone), nil
	case "profile", "5":
		return b.showProfile(ctx, t), nil
	}

	if utils.IsValidUgandaNumber(t.input) {
		return b.handleDirectNumber(ctx, t), nil
	}
	return unknownCommandReplies[b.pick(len(unknownCommandReplies))], nil
}

func (b *BotService) checkBalance(ctx context.Context) string {
	balance, err := b.api.GetWalletBalance(ctx)
	if err != nil {
		b.log.WithError(err).Error("Error fetching wallet balance")
		return MsgBalanceFailed
	}
	return balanceMessage(balance)
}

func (b *BotService) showBundles(ctx context.Context, t *turn) string {
	plans, err := b.api.GetBundles(ctx)
	if err != nil {
		b.log.WithError(err).Error("Error fetching bundles")
		return MsgBundlesFailed
	}
	if len(plans) == 0 {
		return MsgNoBundles
	}
	b.transition(ctx, t.user.ID, models.StateSelectingBundle, models.ActionBundleSelection, models.BundleSelection{Plans: plans})
	return bundleListMessage(plans)
}

func (b *BotService) showHistory(ctx context.Context, t *turn) string {
	txns, err := b.ledger.History(ctx, t.user.ID, b.cfg.HistoryLimit)
	if err != nil {
		b.log.WithError(err).Error("Error loading transaction history")
		return MsgHistoryFailed
	}
	if len(txns) == 0 {
		return MsgNoHistory
	}
	return historyMessage(txns)
}

func (b *BotService) showProfile(ctx context.Context, t *turn) string {
	stats, err := b.ledger.Stats(ctx, t.user.ID)
	if err != nil {
		b.log.WithError(err).Error("Error loading transaction stats")
		return MsgProfileFailed
	}
	saved, err := b.store.CountSavedNumbers(ctx, t.user.ID)
	if err != nil {
		b.log.WithError(err).Warn("Error counting saved numbers")
	}
	return profileMessage(t.user, stats, saved)
}

func (b *BotService) handleDirectNumber(ctx context.Context, t *turn) string {
	phone := utils.FormatPhoneNumber(t.input)
	info, err := b.api.GetSubscriptionInfo(ctx, phone)
	if err != nil {
		b.log.WithError(err).WithField("number", phone).Warn("Subscriber lookup failed")
		return numberLookupFailedMessage(phone, FailureReason(err))
	}
	b.saveNumber(ctx, t.user.ID, phone, info)

	b.transition(ctx, t.user.ID, models.StateNumberSelected, models.ActionNumberLookup, models.NumberContext{
		PhoneNumber:    phone,
		SubscriberName: info.FullName(),
	})
	return numberInfoMessage(phone, info.FullName())
}

// parseChoice converts a 1-based menu answer into an index in [0, n).
func parseChoice(input string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func (b *BotService) handleBundleSelection(ctx context.Context, t *turn, data models.BundleSelection) (string, error) {
	idx, ok := parseChoice(t.input, len(data.Plans))
	if !ok {
		return invalidSelectionMessage(len(data.Plans)), nil
	}
	plan := data.Plans[idx]
	return b.askRecipient(ctx, t, models.ActionBundlePurchase, &plan, 0, planSummary(&plan)), nil
}

func (b *BotService) handleAmountInput(ctx context.Context, t *turn) (string, error) {
	amount, msg := b.validateAmount(t.input)
	if msg != "" {
		return msg, nil
	}
	return b.askRecipient(ctx, t, models.ActionAirtimePurchase, nil, amount, amountSummary(amount)), nil
}

// validateAmount returns the parsed amount or a rejection message.
func (b *BotService) validateAmount(input string) (int64, string) {
	amount := utils.ParseAmount(input)
	if amount < b.cfg.MinAirtimeAmount {
		return 0, minAmountMessage(b.cfg.MinAirtimeAmount)
	}
	if amount > b.cfg.MaxAirtimeAmount {
		return 0, maxAmountMessage(b.cfg.MaxAirtimeAmount)
	}
	return amount, ""
}

// askRecipient offers saved numbers when the user has any, otherwise asks for a number.
func (b *BotService) askRecipient(ctx context.Context, t *turn, action models.SessionAction, plan *models.Plan, amount int64, header string) string {
	saved, err := b.store.GetSavedNumbers(ctx, t.user.ID, b.cfg.SavedNumbersLimit)
	if err != nil {
		b.log.WithError(err).Warn("Error loading saved numbers")
		saved = nil
	}

	if len(saved) == 0 {
		b.transition(ctx, t.user.ID, models.StateAwaitingNumber, action, models.NumberEntry{Plan: plan, Amount: amount})
		return askNumberMessage(header)
	}

	refs := make([]models.SavedNumberRef, 0, len(saved))
	for _, n := range saved {
		refs = append(refs, n.Ref())
	}
	b.transition(ctx, t.user.ID, models.StateSelectingSavedNumber, action, models.SavedNumberChoice{
		Plan:         plan,
		Amount:       amount,
		SavedNumbers: refs,
	})
	return savedNumbersMessage(header, refs)
}

func (b *BotService) handleSavedNumberSelection(ctx context.Context, t *turn, data models.SavedNumberChoice) (string, error) {
	if t.command == "new" {
		b.transition(ctx, t.user.ID, models.StateAwaitingNumber, t.session.Action, models.NumberEntry{
			Plan:   data.Plan,
			Amount: data.Amount,
		})
		return askNewNumberMessage(), nil
	}

	idx, ok := parseChoice(t.input, len(data.SavedNumbers))
	if !ok {
		return invalidSavedNumberMessage(len(data.SavedNumbers)), nil
	}
	chosen := data.SavedNumbers[idx]
	return b.confirmPurchase(ctx, t, t.session.Action, data.Plan, data.Amount, chosen.SubscriptionID, chosen.SubscriberName), nil
}

func (b *BotService) handleNumberInput(ctx context.Context, t *turn, data models.NumberEntry) (string, error) {
	if !utils.IsValidUgandaNumber(t.input) {
		return invalidNumberMessage(), nil
	}
	phone := utils.FormatPhoneNumber(t.input)
	return b.confirmPurchase(ctx, t, t.session.Action, data.Plan, data.Amount, phone, ""), nil
}

// confirmPurchase shows the confirmation prompt. The subscriber lookup runs on
// every confirmation and refreshes the saved number; knownName is the fallback
// when it fails.
func (b *BotService) confirmPurchase(ctx context.Context, t *turn, action models.SessionAction, plan *models.Plan, amount int64, phone, knownName string) string {
	conf := models.PurchaseConfirmation{
		Plan:           plan,
		Amount:         amount,
		PhoneNumber:    phone,
		SubscriberName: knownName,
	}

	var state models.SessionState
	switch {
	case action == models.ActionBundlePurchase && plan != nil:
		state = models.StateConfirmingPurchase
		conf.Amount = 0
	case action == models.ActionAirtimePurchase && amount > 0:
		state = models.StateConfirmingAirtime
		conf.Plan = nil
	default:
		b.log.WithFields(logrus.Fields{"action": action, "state": t.session.State}).Warn("Inconsistent session data")
		b.reset(ctx, t.user.ID)
		return MsgStartOver
	}

	info, err := b.api.GetSubscriptionInfo(ctx, phone)
	if err != nil {
		b.log.WithError(err).WithField("number", phone).Warn("Subscriber lookup failed, continuing with known name")
	} else {
		if name := info.FullName(); name != "" {
			conf.SubscriberName = name
		}
		b.saveNumber(ctx, t.user.ID, phone, info)
	}

	conf.TransactionID = b.newTxnID()
	b.transition(ctx, t.user.ID, state, action, conf)
	return confirmationMessage(conf)
}

func (b *BotService) handleConfirmation(ctx context.Context, t *turn, data models.PurchaseConfirmation) (string, error) {
	switch t.command {
	case "1", "yes":
		return b.executePurchase(ctx, t, data)
	case "2", "no", "cancel":
		b.reset(ctx, t.user.ID)
		return MsgPurchaseCancelled, nil
	}
	return MsgConfirmChoice, nil
}

// executePurchase runs ledger create, reseller call and ledger update in that
// order. The session is cleared whatever the outcome.
func (b *BotService) executePurchase(ctx context.Context, t *turn, conf models.PurchaseConfirmation) (string, error) {
	txnType := models.TransactionTypeAirtime
	amount := conf.Amount
	meta := models.TransactionMetadata{SubscriberName: conf.SubscriberName}
	if conf.Plan != nil {
		txnType = models.TransactionTypeBundle
		amount = utils.RoundAmount(conf.Plan.Price)
		meta.BundleName = conf.Plan.Name
		meta.BundleToken = conf.Plan.Token
	}

	if b.cfg.MaxRechargePerHour > 0 {
		count, err := b.store.CountRecentTransactions(ctx, conf.PhoneNumber, b.now().Add(-time.Hour))
		if err != nil {
			b.log.WithError(err).Warn("Could not check hourly recharge limit")
		} else if count >= int64(b.cfg.MaxRechargePerHour) {
			b.reset(ctx, t.user.ID)
			return rechargeLimitMessage(conf.PhoneNumber, b.cfg.MaxRechargePerHour), nil
		}
	}

	txnID := conf.TransactionID
	if txnID == "" {
		txnID = b.newTxnID()
	}

	_, err := b.ledger.Create(ctx, NewTransaction{
		UserID:         t.user.ID,
		Type:           txnType,
		Amount:         amount,
		SubscriptionID: conf.PhoneNumber,
		TransactionID:  txnID,
		Metadata:       meta,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		b.reset(ctx, t.user.ID)
		return alreadyProcessingMessage(txnID), nil
	}
	if err != nil {
		return "", err
	}

	var result *PurchaseResult
	if txnType == models.TransactionTypeBundle {
		result, err = b.api.PurchaseBundle(ctx, conf.PhoneNumber, conf.Plan.Token, txnID)
	} else {
		result, err = b.api.PurchaseAirtime(ctx, conf.PhoneNumber, amount, txnID)
	}

	defer b.reset(ctx, t.user.ID)

	entry := b.log.WithFields(logrus.Fields{
		"transaction_id": txnID,
		"type":           txnType,
		"number":         conf.PhoneNumber,
	})
	if err != nil {
		reason := FailureReason(err)
		entry.WithError(err).Warn("Purchase failed")
		b.ledger.MarkFailed(ctx, txnID, FailureCode(err), reason)
		return failureMessage(txnID, reason), nil
	}

	entry.Info("Purchase successful")
	b.ledger.MarkSuccess(ctx, txnID, result.ProviderReference())
	return successMessage(conf, txnID, b.now()), nil
}

func (b *BotService) handleNumberSelected(ctx context.Context, t *turn, data models.NumberContext) (string, error) {
	switch t.command {
	case "1", "bundle", "bundles":
		plans, err := b.api.GetBundles(ctx)
		if err != nil {
			b.log.WithError(err).Error("Error fetching bundles")
			return MsgBundlesFailed, nil
		}
		if len(plans) == 0 {
			return MsgNoBundles, nil
		}
		data.Plans = plans
		b.transition(ctx, t.user.ID, models.StateSelectingBundleForNumber, models.ActionBundlePurchase, data)
		return bundleListForNumberMessage(data.PhoneNumber, plans), nil
	case "2", "airtime":
		data.Plans = nil
		b.transition(ctx, t.user.ID, models.StateEnteringAmountForNumber, models.ActionAirtimePurchase, data)
		return airtimeForNumberMessage(data.PhoneNumber, b.cfg.MinAirtimeAmount, b.cfg.MaxAirtimeAmount), nil
	case "3":
		b.reset(ctx, t.user.ID)
		return mainMenu(b.cfg.Name), nil
	}
	return numberInfoMessage(data.PhoneNumber, data.SubscriberName), nil
}

func (b *BotService) handleBundleForNumber(ctx context.Context, t *turn, data models.NumberContext) (string, error) {
	idx, ok := parseChoice(t.input, len(data.Plans))
	if !ok {
		return invalidSelectionMessage(len(data.Plans)), nil
	}
	plan := data.Plans[idx]
	return b.confirmPurchase(ctx, t, models.ActionBundlePurchase, &plan, 0, data.PhoneNumber, data.SubscriberName), nil
}

func (b *BotService) handleAmountForNumber(ctx context.Context, t *turn, data models.NumberContext) (string, error) {
	amount, msg := b.validateAmount(t.input)
	if msg != "" {
		return msg, nil
	}
	return b.confirmPurchase(ctx, t, models.ActionAirtimePurchase, nil, amount, data.PhoneNumber, data.SubscriberName), nil
}

func (b *BotService) saveNumber(ctx context.Context, userID uint, phone string, info *SubscriberInfo) {
	err := b.store.UpsertSavedNumber(ctx, &models.SavedNumber{
		UserID:         userID,
		SubscriptionID: phone,
		FirstName:      info.FirstName,
		LastName:       info.LastName,
	})
	if err != nil {
		b.log.WithError(err).WithField("number", phone).Warn("Failed to save customer number")
	}
}

// transition persists a session change; failures are logged, not surfaced.
func (b *BotService) transition(ctx context.Context, userID uint, state models.SessionState, action models.SessionAction, data models.FlowData) {
	if err := b.sessions.Update(ctx, userID, state, action, data); err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "state": state}).Error("Failed to save session")
	}
}

func (b *BotService) reset(ctx context.Context, userID uint) {
	if err := b.sessions.Clear(ctx, userID); err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("Failed to clear session")
	}
}

func (b *BotService) logMessage(ctx context.Context, phone, direction, body, messageID string) {
	err := b.store.CreateMessageLog(ctx, &models.MessageLog{
		Phone:     phone,
		Direction: direction,
		Body:      body,
		MessageID: messageID,
	})
	if err != nil {
		b.log.WithError(err).Warn("Failed to log message")
	}
}
