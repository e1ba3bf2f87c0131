package bank

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/bank/account"
	"github.com/code-payments/code-escrow/pkg/cache"
	"github.com/code-payments/code-escrow/pkg/metrics"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	sync_util "github.com/code-payments/code-escrow/pkg/sync"
)

const (
	metricsStructName = "bank"

	transactionEventName = "BankTransaction"
)

// Receipt is the result of a processed transaction
type Receipt struct {
	ExecutionID uuid.UUID
	Signature   solana.Signature
	Logs        []string
}

// Bank executes transactions against natively implemented programs. Every
// transaction is executed atomically: either all of its account changes are
// committed to the account store, or none are.
type Bank struct {
	log       *logrus.Entry
	conf      *conf
	accounts  account.Store
	locks     *sync_util.StripedLock
	addresses cache.Cache

	programsMu sync.RWMutex
	programs   map[string]solana.Entrypoint
}

// New returns a new Bank backed by the account store. The system program is
// registered by default.
func New(accounts account.Store, configProvider ConfigProvider) *Bank {
	ctx := context.Background()
	conf := configProvider()

	b := &Bank{
		log:       logrus.StandardLogger().WithField("type", "bank"),
		conf:      conf,
		accounts:  accounts,
		locks:     sync_util.NewStripedLock(uint(conf.accountLockStripes.Get(ctx))),
		addresses: cache.NewCache(int(conf.addressCacheBudget.Get(ctx))),
		programs:  make(map[string]solana.Entrypoint),
	}
	b.RegisterProgram(system.ProgramKey[:], system.Process)
	return b
}

// RegisterProgram makes a program available for execution at programID
func (b *Bank) RegisterProgram(programID ed25519.PublicKey, entrypoint solana.Entrypoint) {
	b.programsMu.Lock()
	defer b.programsMu.Unlock()

	b.programs[base58.Encode(programID)] = entrypoint
}

func (b *Bank) getProgram(programID ed25519.PublicKey) (solana.Entrypoint, bool) {
	b.programsMu.RLock()
	defer b.programsMu.RUnlock()

	entrypoint, ok := b.programs[base58.Encode(programID)]
	return entrypoint, ok
}

// Rent returns the rent configuration the bank exposes through the rent sysvar.
// A configured burn percentage above 100 is clamped to 100.
func (b *Bank) Rent(ctx context.Context) *system.Rent {
	burnPercent := b.conf.rentBurnPercent.Get(ctx)
	if burnPercent > maxRentBurnPercent {
		b.log.WithField("configured", burnPercent).Warn("rent burn percent out of range, clamping")
		burnPercent = maxRentBurnPercent
	}

	return &system.Rent{
		LamportsPerByteYear: b.conf.rentLamportsPerByteYear.Get(ctx),
		ExemptionThreshold:  b.conf.rentExemptionThreshold.Get(ctx),
		BurnPercent:         uint8(burnPercent),
	}
}

// GetAccount gets the committed state of an account. account.ErrAccountNotFound
// is returned for addresses without any lamports.
func (b *Bank) GetAccount(ctx context.Context, key ed25519.PublicKey) (*solana.Account, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetAccount")
	defer tracer.End()

	unlock := b.locks.LockKeys(nil, [][]byte{key})
	defer unlock()

	acc, err := b.loadAccount(ctx, key)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	if acc.Lamports == 0 {
		return nil, account.ErrAccountNotFound
	}
	return acc, nil
}

// SetAccount overwrites the committed state of an account outside of any
// transaction. It is intended for genesis funding and tests.
func (b *Bank) SetAccount(ctx context.Context, key ed25519.PublicKey, acc *solana.Account) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SetAccount")
	defer tracer.End()

	if b.isReserved(key) {
		return errors.Errorf("account %s is reserved", base58.Encode(key))
	}

	unlock := b.locks.LockKeys([][]byte{key}, nil)
	defer unlock()

	err := b.accounts.SaveBatch(ctx, toRecord(key, acc))
	tracer.OnError(err)
	return err
}

// ProcessTransaction verifies and executes a transaction, committing its
// account changes on success.
//
// Failures before execution are returned as *solana.TransactionError with a nil
// receipt. When an instruction fails, the returned *solana.TransactionError
// wraps a solana.InstructionError and the receipt carries the logs produced up
// to the failure. Nothing is committed in either case.
func (b *Bank) ProcessTransaction(ctx context.Context, tx solana.Transaction) (*Receipt, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ProcessTransaction")
	defer tracer.End()

	start := time.Now()

	receipt := &Receipt{
		ExecutionID: uuid.New(),
	}

	log := b.log.WithFields(logrus.Fields{
		"method":       "ProcessTransaction",
		"execution_id": receipt.ExecutionID.String(),
	})

	receipt, err := b.processTransaction(ctx, log, receipt, tx)

	metrics.RecordDuration(ctx, "Bank/ProcessTransaction/Duration", time.Since(start))
	metrics.RecordEvent(ctx, transactionEventName, map[string]interface{}{
		"execution_id": receipt.ExecutionID.String(),
		"success":      err == nil,
	})

	if err != nil {
		tracer.OnError(err)
		metrics.RecordCount(ctx, "Bank/ProcessTransaction/Failure", 1)

		var txErr *solana.TransactionError
		if errors.As(err, &txErr) && txErr.InstructionError() != nil {
			return receipt, err
		}
		return nil, err
	}

	metrics.RecordCount(ctx, "Bank/ProcessTransaction/Success", 1)
	return receipt, nil
}

func (b *Bank) processTransaction(ctx context.Context, log *logrus.Entry, receipt *Receipt, tx solana.Transaction) (*Receipt, error) {
	if err := tx.Message.Sanitize(); err != nil {
		log.WithError(err).Debug("transaction failed to sanitize")
		return receipt, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if err := tx.VerifySignatures(); err != nil {
		log.WithError(err).Debug("transaction signature verification failed")
		return receipt, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	receipt.Signature = tx.Signatures[0]
	log = log.WithField("signature", receipt.Signature.ToBase58())

	m := tx.Message
	for _, ix := range m.Instructions {
		if _, ok := b.getProgram(m.Accounts[ix.ProgramIndex]); !ok {
			log.Debugf("program %s is not registered", base58.Encode(m.Accounts[ix.ProgramIndex]))
			return receipt, solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
		}
	}

	var writeKeys, readKeys [][]byte
	writable := make([]bool, len(m.Accounts))
	for i, key := range m.Accounts {
		// Programs and sysvars are never writable
		writable[i] = m.IsWritable(i) && !b.isReserved(key)

		if writable[i] {
			writeKeys = append(writeKeys, key)
		} else {
			readKeys = append(readKeys, key)
		}
	}

	unlock := b.locks.LockKeys(writeKeys, readKeys)
	defer unlock()

	infos := make([]*solana.AccountInfo, len(m.Accounts))
	committed := make([]*solana.Account, len(m.Accounts))
	for i, key := range m.Accounts {
		acc, err := b.loadAccount(ctx, key)
		if err != nil {
			log.WithError(err).Warn("failure loading account")
			return receipt, errors.Wrap(err, "error loading account")
		}

		committed[i] = acc.Clone()
		infos[i] = &solana.AccountInfo{
			Key:        key,
			IsSigner:   m.IsSigner(i),
			IsWritable: writable[i],
			Account:    acc,
		}
	}

	if infos[0].Lamports == 0 {
		return receipt, solana.NewTransactionError(solana.TransactionErrorAccountNotFound)
	}

	exec := newExecution(b, int(b.conf.maxInvokeDepth.Get(ctx)))
	for i, ix := range m.Instructions {
		accounts := make([]*solana.AccountInfo, len(ix.Accounts))
		for j, index := range ix.Accounts {
			accounts[j] = infos[index]
		}

		err := exec.invoke(ctx, nil, m.Accounts[ix.ProgramIndex], accounts, ix.Data)
		if err != nil {
			receipt.Logs = exec.logs

			txErr, convErr := solana.TransactionErrorFromInstructionError(&solana.InstructionError{Index: i, Err: err})
			if convErr != nil {
				return receipt, convErr
			}

			log.WithError(err).WithField("instruction", i).Debug("transaction failed")
			return receipt, txErr
		}
	}
	receipt.Logs = exec.logs

	var records []*account.Record
	for i, info := range infos {
		if !info.IsWritable || isUnchanged(committed[i], info.Account) {
			continue
		}
		records = append(records, toRecord(info.Key, info.Account))
	}

	if len(records) > 0 {
		if err := b.accounts.SaveBatch(ctx, records...); err != nil {
			log.WithError(err).Warn("failure committing accounts")
			return receipt, errors.Wrap(err, "error committing accounts")
		}
	}

	log.WithField("updated_accounts", len(records)).Debug("transaction processed")
	return receipt, nil
}

// loadAccount loads the working copy of an account. Registered programs and the
// rent sysvar are synthesized, and unknown addresses load as empty system
// accounts.
func (b *Bank) loadAccount(ctx context.Context, key ed25519.PublicKey) (*solana.Account, error) {
	if bytes.Equal(key, system.RentSysVar) {
		return &solana.Account{
			Owner:    system.SysvarOwner,
			Lamports: 1,
			Data:     b.Rent(ctx).Marshal(),
		}, nil
	}

	if _, ok := b.getProgram(key); ok {
		return &solana.Account{
			Owner:      system.NativeLoader,
			Lamports:   1,
			Executable: true,
		}, nil
	}

	record, err := b.accounts.Get(ctx, base58.Encode(key))
	if err == account.ErrAccountNotFound {
		return &solana.Account{
			Owner: system.ProgramKey[:],
		}, nil
	} else if err != nil {
		return nil, err
	}

	return fromRecord(record)
}

func (b *Bank) isReserved(key ed25519.PublicKey) bool {
	if bytes.Equal(key, system.RentSysVar) {
		return true
	}
	_, ok := b.getProgram(key)
	return ok
}

func isUnchanged(before, after *solana.Account) bool {
	return before.Lamports == after.Lamports &&
		before.Executable == after.Executable &&
		bytes.Equal(before.Owner, after.Owner) &&
		bytes.Equal(before.Data, after.Data) &&
		len(before.Data) == len(after.Data)
}

func toRecord(key ed25519.PublicKey, acc *solana.Account) *account.Record {
	data := make([]byte, len(acc.Data))
	copy(data, acc.Data)

	return &account.Record{
		Address:    base58.Encode(key),
		Owner:      base58.Encode(acc.Owner),
		Lamports:   acc.Lamports,
		Data:       data,
		Executable: acc.Executable,
	}
}

func fromRecord(record *account.Record) (*solana.Account, error) {
	owner, err := base58.Decode(record.Owner)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid owner for account %s", record.Address)
	}
	if len(owner) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid owner length for account %s", record.Address)
	}

	data := make([]byte, len(record.Data))
	copy(data, record.Data)

	return &solana.Account{
		Owner:      owner,
		Lamports:   record.Lamports,
		Data:       data,
		Executable: record.Executable,
	}, nil
}
