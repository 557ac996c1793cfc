package services

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/lycapay-backend/internal/config"
	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
)

// Sender delivers reply text to a WhatsApp user.
type Sender interface {
	SendWhatsAppMessage(to string, message string) error
}

// TwilioService sends WhatsApp messages through the Twilio REST API.
type TwilioService struct {
	client *twilio.RestClient
	from   string // "whatsapp:+14155238886"
	log    *logrus.Entry
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg config.TwilioConfig) (*TwilioService, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioService{
		client: client,
		from:   whatsappAddress(cfg.WhatsAppFrom),
		log:    logging.WithComponent("twilio"),
	}, nil
}

func whatsappAddress(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return "whatsapp:" + number
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio
func (t *TwilioService) SendWhatsAppMessage(to string, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(to))
	params.SetBody(message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		t.log.WithError(err).WithField("to", to).Error("❌ Failed to send WhatsApp message")
		return err
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.log.WithField("sid", sid).Info("✅ WhatsApp message sent")
	return nil
}

// LogSender only logs replies. It stands in for Twilio when credentials are absent.
type LogSender struct {
	log *logrus.Entry
}

// NewLogSender creates a sender that writes replies to the log.
func NewLogSender() *LogSender {
	return &LogSender{log: logging.WithComponent("sender")}
}

func (l *LogSender) SendWhatsAppMessage(to string, message string) error {
	l.log.WithFields(logrus.Fields{"to": to, "chars": len(message)}).Info("📝 Reply not sent, Twilio is not configured")
	return nil
}
