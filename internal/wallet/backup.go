package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/monolythium/wallet-cli/internal/walletgen"
)

const backupVersion = 1

type backupSnapshot struct {
	Version  int          `json:"version"`
	Mnemonic string       `json:"mnemonic"`
	Accounts []accountDoc `json:"accounts"`
}

// BackupFileName returns the name used when a backup destination is a directory.
func BackupFileName(now time.Time) string {
	return fmt.Sprintf("wallet-backup-%s.keystore", now.UTC().Format("2006-01-02T15-04-05"))
}

// Backup writes the mnemonic and every account into a file sealed with
// password. dest may be a file path or an existing directory. The absolute
// path of the written file is returned.
func (m *Manager) Backup(ctx context.Context, dest, password string) (string, error) {
	mnemonic, err := m.secret()
	if err != nil {
		return "", err
	}

	target := dest
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		target = filepath.Join(dest, BackupFileName(time.Now()))
	}
	target, err = filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve backup path: %w", err)
	}

	snap := backupSnapshot{Version: backupVersion, Mnemonic: mnemonic}
	for _, a := range m.accounts.All() {
		snap.Accounts = append(snap.Accounts, a.snapshot())
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}

	box, err := walletgen.SealWithParams(keystoreKindBackup, data, password, m.scrypt)
	if err != nil {
		return "", err
	}
	if err := walletgen.SaveSealedBox(box, target); err != nil {
		return "", err
	}

	m.logger.Info("backup written", "path", target, "accounts", len(snap.Accounts))
	return target, nil
}

// ImportAccounts restores a backup into empty storage. On success the
// keystore is unlocked with password.
func (m *Manager) ImportAccounts(ctx context.Context, source, password string) error {
	if m.KeystoreExists() || m.accounts.Len() > 0 {
		return ErrStorageNotEmpty
	}

	box, err := walletgen.LoadSealedBox(source)
	if err != nil {
		return err
	}
	if box.Kind != keystoreKindBackup {
		return fmt.Errorf("%s is not a wallet backup", source)
	}
	data, err := walletgen.Open(box, password)
	if err != nil {
		if errors.Is(err, walletgen.ErrDecrypt) {
			return ErrWrongPassword
		}
		return err
	}

	var snap backupSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if snap.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %d", snap.Version)
	}
	if err := walletgen.ValidateMnemonic(snap.Mnemonic); err != nil {
		return err
	}

	if err := m.SetPassword(ctx, password); err != nil {
		return err
	}
	if err := m.StoreMnemonic(ctx, SignerKeystore, &snap.Mnemonic); err != nil {
		return err
	}
	for _, doc := range snap.Accounts {
		if err := m.persist(doc); err != nil {
			return fmt.Errorf("failed to save account %s: %w", doc.Alias, err)
		}
		m.accounts.add(newAccountHandle(m, doc))
	}

	m.logger.Info("backup imported", "path", source, "accounts", len(snap.Accounts))
	return nil
}
