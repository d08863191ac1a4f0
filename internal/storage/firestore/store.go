// Package firestore — хранилище витрины в Cloud Firestore с оптимистичными транзакциями.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	envGoogleProjectID = "GOOGLE_CLOUD_PROJECT"

	defaultDialTimeout   = 10 * time.Second
	defaultMaxTxAttempts = 5
	defaultTxTimeout     = 15 * time.Second
	opTimeout            = 5 * time.Second
	defaultListLimit     = 100
)

// Имена коллекций.
const (
	colProducts          = "products"
	colOrders            = "orders"
	colIdempotency       = "idempotency"
	colPaymentOperations = "paymentOperations"
	colCounters          = "counters"
	colSettings          = "settings"
	colStockLogs         = "stock_logs"
	colAuditLogs         = "audit_logs"
	colOutbox            = "outbox"

	settingsDocID = "store"
)

// Config описывает подключение к Firestore.
type Config struct {
	ProjectID       string
	EmulatorHost    string
	CredentialsFile string
	MaxTxAttempts   int
}

// Store реализует domain.Store поверх клиента Firestore.
type Store struct {
	client      *firestore.Client
	maxAttempts int
	logger      *log.Entry
}

// Open создаёт клиента. С EmulatorHost подключается к эмулятору без аутентификации.
func Open(ctx context.Context, cfg Config, logger *log.Entry) (*Store, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(os.Getenv(envGoogleProjectID))
	}
	if projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	var opts []option.ClientOption
	host := strings.TrimSpace(cfg.EmulatorHost)
	if host == "" {
		host = strings.TrimSpace(os.Getenv(envEmulatorHost))
	}
	switch {
	case host != "":
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	client, err := firestore.NewClient(dialCtx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	return NewStore(client, cfg.MaxTxAttempts, logger), nil
}

// NewStore оборачивает готового клиента.
func NewStore(client *firestore.Client, maxAttempts int, logger *log.Entry) *Store {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxTxAttempts
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Store{
		client:      client,
		maxAttempts: maxAttempts,
		logger:      logger.WithField("component", "firestore-store"),
	}
}

// Client отдаёт нижележащего клиента.
func (s *Store) Client() *firestore.Client {
	return s.client
}

// Close закрывает клиента.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Ping читает документ настроек; отсутствие документа не считается ошибкой.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.client.Collection(colSettings).Doc(settingsDocID).Get(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// RunInTx выполняет fn в транзакции Firestore. Клиент сам повторяет попытки
// при ABORTED, после исчерпания попыток возвращается domain.ErrTxConflict.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	txCtx := ctx
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > defaultTxTimeout {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	err := s.client.RunTransaction(txCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		ftx := &fsTx{client: s.client, tx: tx}
		if err := fn(ctx, ftx); err != nil {
			return err
		}
		return ftx.flush()
	}, firestore.MaxAttempts(s.maxAttempts))
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.Aborted {
		s.logger.WithError(err).Warn("transaction aborted after retries")
		return fmt.Errorf("%w after %d attempts: %v", domain.ErrTxConflict, s.maxAttempts, err)
	}
	return err
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

var _ domain.Store = (*Store)(nil)
