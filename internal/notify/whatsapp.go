package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/dvnhat/shopchat/internal/models"
	shopstore "github.com/dvnhat/shopchat/internal/store"
)

// JIDSuffix is the WhatsApp JID suffix for regular users.
const JIDSuffix = "s.whatsapp.net"

// WhatsAppOpts holds configuration for the direct WhatsApp sender.
type WhatsAppOpts struct {
	DBDSN       string // whatsmeow session database connection string
	QRPath      string // path to write the device-link QR code
	NumericCode bool   // print a numeric link code instead of a QR code
}

// WhatsAppOption defines a configuration option for the WhatsApp sender.
type WhatsAppOption func(*WhatsAppOpts)

// WithWhatsAppDBDSN sets the whatsmeow session database connection string.
func WithWhatsAppDBDSN(dsn string) WhatsAppOption {
	return func(o *WhatsAppOpts) { o.DBDSN = dsn }
}

// WithQRCodeOutput writes the device-link QR code to the given path.
func WithQRCodeOutput(path string) WhatsAppOption {
	return func(o *WhatsAppOpts) { o.QRPath = path }
}

// WithNumericCode prints a numeric link code instead of a QR code.
func WithNumericCode() WhatsAppOption {
	return func(o *WhatsAppOpts) { o.NumericCode = true }
}

// WhatsAppService sends order notifications directly over WhatsApp via
// whatsmeow.
type WhatsAppService struct {
	waClient *whatsmeow.Client
}

// NewWhatsAppService creates and connects the whatsmeow client, driving the
// QR/numeric device-link flow when no session exists yet.
func NewWhatsAppService(opts ...WhatsAppOption) (*WhatsAppService, error) {
	var cfg WhatsAppOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("whatsapp session database DSN not set")
	}

	var dbDriver string
	if shopstore.DetectDSNType(cfg.DBDSN) == "postgres" {
		dbDriver = "postgres"
	} else {
		dbDriver = "sqlite3"
		if !strings.Contains(cfg.DBDSN, "_foreign_keys") && !strings.Contains(cfg.DBDSN, "foreign_keys") {
			slog.Warn("SQLite DSN for WhatsApp session store has no foreign keys flag; "+
				"whatsmeow recommends enabling them", "dsn_example", "file:"+cfg.DBDSN+"?_foreign_keys=on")
		}
	}

	ctx := context.Background()
	container, err := sqlstore.New(ctx, dbDriver, cfg.DBDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("initialize whatsapp session store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get whatsapp device: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	if waClient.Store.ID == nil {
		slog.Info("WhatsApp login required; starting device-link flow")
		qrChan, _ := waClient.GetQRChannel(context.Background())
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("connect to whatsapp for login: %w", err)
		}
		writer := io.Writer(os.Stdout)
		if cfg.QRPath != "" {
			f, ferr := os.Create(cfg.QRPath)
			if ferr != nil {
				return nil, fmt.Errorf("create QR file: %w", ferr)
			}
			defer f.Close()
			writer = f
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				if cfg.NumericCode {
					fmt.Fprintln(writer, evt.Code)
				} else {
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
				}
			} else {
				slog.Debug("WhatsApp login event", "event", evt.Event)
			}
		}
	} else {
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("connect to whatsapp: %w", err)
		}
	}
	slog.Info("WhatsApp notifier connected")
	return &WhatsAppService{waClient: waClient}, nil
}

// SendOrderConfirmation delivers the confirmation message over WhatsApp.
func (s *WhatsAppService) SendOrderConfirmation(ctx context.Context, to string, order models.Order) error {
	if s.waClient == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	canonical, err := CanonicalizeRecipient(to)
	if err != nil {
		return fmt.Errorf("invalid notification recipient: %w", err)
	}

	body := FormatOrderConfirmation(order)
	jid := types.NewJID(canonical, JIDSuffix)
	msg := &waE2E.Message{Conversation: &body}

	if _, err := s.waClient.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("WhatsApp order notification failed", "to", canonical, "orderID", order.ID, "error", err)
		return fmt.Errorf("send order confirmation to %s: %w", canonical, err)
	}
	slog.Debug("WhatsApp order notification sent", "to", canonical, "orderNumber", order.OrderNumber)
	return nil
}

// Disconnect closes the underlying WhatsApp connection.
func (s *WhatsAppService) Disconnect() {
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
}
