// Package main wires up the OTPKeeper shell: configuration, logging,
// the single-instance lock, the OS keyring probe, the PIN gate, and the
// interactive command loop.
package main

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/okulov/OTPKeeper/internal/backup"
	"github.com/okulov/OTPKeeper/internal/config"
	"github.com/okulov/OTPKeeper/internal/logger"
	"github.com/okulov/OTPKeeper/internal/models"
	"github.com/okulov/OTPKeeper/internal/otp"
	"github.com/okulov/OTPKeeper/internal/pin"
	"github.com/okulov/OTPKeeper/internal/secrets"
	"github.com/okulov/OTPKeeper/internal/session"
	"github.com/okulov/OTPKeeper/internal/vault"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// readHidden reads a line without echo (PINs, backup passwords).
func readHidden(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", session.ErrCancelled
	}
	return strings.TrimSpace(string(b)), nil
}

// pinPrompt adapts hidden terminal input to the unlock protocol. An
// empty entry counts as a cancelled prompt.
func pinPrompt(attemptsLeft int) (string, error) {
	entered, err := readHidden(fmt.Sprintf("Enter PIN (%d attempts left): ", attemptsLeft))
	if err != nil {
		return "", err
	}
	if entered == "" {
		return "", session.ErrCancelled
	}
	return entered, nil
}

// firstRunSetup creates the initial PIN and returns it so the caller
// can unlock with it right away. Cancelling here denies access: the
// vault never runs unprotected.
func firstRunSetup(gate *pin.Gate) (string, error) {
	fmt.Println("Welcome! Set a PIN for application access (min. 4 characters).")
	newPin, err := readHidden("New PIN: ")
	if err != nil || newPin == "" {
		return "", session.ErrAccessDenied
	}
	confirm, err := readHidden("Confirm PIN: ")
	if err != nil || confirm != newPin {
		fmt.Println("PINs do not match.")
		return "", session.ErrAccessDenied
	}
	if err := gate.Set(newPin); err != nil {
		if errors.Is(err, pin.ErrTooShort) {
			fmt.Println(err)
			return "", session.ErrAccessDenied
		}
		return "", err
	}
	fmt.Println("Application PIN has been set.")
	return newPin, nil
}

func promptLine(scanner *bufio.Scanner, prompt string) string {
	fmt.Print(prompt)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

// promptRecord gathers token fields, pre-filling from existing on edit.
func promptRecord(scanner *bufio.Scanner, existing *models.TokenRecord) (models.TokenRecord, error) {
	var rec models.TokenRecord
	if existing != nil {
		rec = *existing
	}

	issuer := promptLine(scanner, "Issuer (e.g. GitHub): ")
	if issuer != "" {
		rec.IssuerName = issuer
	}
	account := promptLine(scanner, "Account (e.g. you@example.com): ")
	if account != "" {
		rec.AccountName = account
	}
	secret := promptLine(scanner, "Base32 secret: ")
	if secret != "" {
		rec.SecretKey = secret
	}
	if existing == nil {
		typ := strings.ToUpper(promptLine(scanner, "Type (TOTP/HOTP) [TOTP]: "))
		if typ == "" {
			typ = string(models.TOTP)
		}
		rec.Type = models.TokenType(typ)
	}
	codes := promptLine(scanner, "Recovery codes (optional): ")
	if codes != "" {
		rec.RecoveryCodes = codes
	}

	if err := otp.ValidateSecret(rec.SecretKey); err != nil {
		return rec, err
	}
	rec.SecretKey = otp.Canonical(rec.SecretKey)
	return rec, nil
}

// currentCode generates the code for a record, bumping and persisting
// the counter for HOTP tokens.
func currentCode(v *vault.Vault, engine *otp.Engine, rec models.TokenRecord) (string, error) {
	code, err := engine.Code(rec.SecretKey, rec.Type, rec.Counter)
	if err != nil {
		return "", err
	}
	if rec.Type == models.HOTP {
		rec.Counter++
		if _, err := v.Save(rec); err != nil {
			return "", fmt.Errorf("advance HOTP counter: %w", err)
		}
	}
	return code, nil
}

func printRecords(recs []models.TokenRecord, engine *otp.Engine) {
	if len(recs) == 0 {
		fmt.Println("No tokens stored.")
		return
	}
	_, seconds := engine.Remaining()
	for _, r := range recs {
		fmt.Printf("%-30s %s (%s) [%s]\n", r.Identifier, r.IssuerName, r.AccountName, r.Type)
	}
	fmt.Printf("TOTP step rolls over in %ds\n", seconds)
}

// repl runs the interactive shell loop, accepting commands to manage tokens.
func repl(ctrl *session.Controller, v *vault.Vault, gate *pin.Gate, engine *otp.Engine, copier *session.CodeCopier) {
	codec := &backup.Codec{}
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("otpkeeper> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		// Any typed command is activity; if auto-lock fired in the
		// meantime, re-authenticate before acting.
		if !ctrl.Unlocked() {
			fmt.Println("Session locked by inactivity.")
			if err := ctrl.Unlock(pinPrompt, true); err != nil {
				fmt.Println("Access denied. Exiting.")
				return
			}
		}
		ctrl.Activity()

		switch args[0] {
		case "help":
			fmt.Println("Commands: list, search <q>, add, edit <id>, delete <id>, code <id>,")
			fmt.Println("          copy <id>, codes <id>, export <file>, import <file>,")
			fmt.Println("          autolock <seconds>, pin, lock, help, exit")
		case "list":
			recs, err := v.ListAll()
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			printRecords(recs, engine)
		case "search":
			if len(args) < 2 {
				fmt.Println("Usage: search <query>")
				continue
			}
			recs, err := v.Search(strings.Join(args[1:], " "))
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			printRecords(recs, engine)
		case "add":
			rec, err := promptRecord(scanner, nil)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			id, err := v.Save(rec)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			fmt.Printf("Token saved as %q\n", id)
		case "edit":
			if len(args) < 2 {
				fmt.Println("Usage: edit <id>")
				continue
			}
			existing, err := v.Get(args[1])
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			fmt.Println("Leave a field empty to keep its current value.")
			rec, err := promptRecord(scanner, &existing)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			if _, err := v.Save(rec); err != nil {
				fmt.Println("Error:", err)
				continue
			}
			fmt.Println("Token updated")
		case "delete":
			if len(args) < 2 {
				fmt.Println("Usage: delete <id>")
				continue
			}
			if err := v.Delete(args[1]); err != nil {
				fmt.Println("Error:", err)
				continue
			}
			fmt.Println("Token deleted")
		case "code":
			if len(args) < 2 {
				fmt.Println("Usage: code <id>")
				continue
			}
			rec, err := v.Get(args[1])
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			code, err := currentCode(v, engine, rec)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			if rec.Type == models.TOTP {
				_, seconds := engine.Remaining()
				fmt.Printf("%s (valid %ds)\n", code, seconds)
			} else {
				fmt.Println(code)
			}
		case "copy":
			if len(args) < 2 {
				fmt.Println("Usage: copy <id>")
				continue
			}
			rec, err := v.Get(args[1])
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			code, err := currentCode(v, engine, rec)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			if err := copier.Copy(code); err != nil {
				fmt.Println("Clipboard error:", err)
				continue
			}
			fmt.Println("Code copied to clipboard. Clearing in 30 seconds.")
		case "codes":
			if len(args) < 2 {
				fmt.Println("Usage: codes <id>")
				continue
			}
			rec, err := v.Get(args[1])
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			if rec.RecoveryCodes == "" {
				fmt.Println("No recovery codes stored for this token.")
			} else {
				fmt.Println(rec.RecoveryCodes)
			}
		case "export":
			if len(args) < 2 {
				fmt.Println("Usage: export <file>")
				continue
			}
			recs, err := v.ListAll()
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			password, err := readHidden("Backup password: ")
			if err != nil || password == "" {
				fmt.Println("Export cancelled.")
				continue
			}
			confirm, _ := readHidden("Confirm password: ")
			if confirm != password {
				fmt.Println("Passwords do not match.")
				continue
			}
			env, err := codec.Export(recs, password)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			if err := backup.WriteFile(args[1], env); err != nil {
				fmt.Println("Error:", err)
				continue
			}
			fmt.Printf("Exported %d tokens to %s\n", len(recs), args[1])
		case "import":
			if len(args) < 2 {
				fmt.Println("Usage: import <file>")
				continue
			}
			env, err := backup.ReadFile(args[1])
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			password, err := readHidden("Backup password: ")
			if err != nil {
				fmt.Println("Import cancelled.")
				continue
			}
			recs, err := codec.Import(env, password)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			added, err := backup.Restore(v, recs)
			if err != nil {
				fmt.Println("Error:", err)
			}
			fmt.Printf("Imported %d tokens (existing entries untouched)\n", added)
		case "autolock":
			if len(args) < 2 {
				fmt.Printf("Auto-lock timeout: %ds (0 = disabled)\n", v.AutoLock())
				continue
			}
			seconds, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Println("Usage: autolock <seconds>")
				continue
			}
			if err := v.SetAutoLock(seconds); err != nil {
				fmt.Println("Error:", err)
				continue
			}
			ctrl.SetTimeout(time.Duration(seconds) * time.Second)
			fmt.Printf("Auto-lock timeout set to %ds\n", seconds)
		case "pin":
			oldPin, err := readHidden("Current PIN: ")
			if err != nil {
				continue
			}
			newPin, err := readHidden("New PIN: ")
			if err != nil {
				continue
			}
			if err := gate.Change(oldPin, newPin); err != nil {
				fmt.Println("Error:", err)
				continue
			}
			fmt.Println("PIN changed")
		case "lock":
			ctrl.Lock()
			// Voluntary re-lock: a cancelled prompt aborts the unlock
			// attempt but keeps the process alive behind the lock.
			err := ctrl.Unlock(pinPrompt, false)
			switch {
			case err == nil:
			case errors.Is(err, session.ErrCancelled):
				fmt.Println("Session remains locked.")
			default:
				fmt.Println("Access denied. Exiting.")
				return
			}
		case "exit":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func main() {
	options := config.Parse()

	fmt.Printf("OTPKeeper\nVersion: %s\nBuild Date: %s\n",
		cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	if err := log.Init("Info"); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	// One process at a time: index updates against the keyring are
	// read-modify-write and must not interleave across instances.
	lock := flock.New(options.LockFile)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		zapLogger.Fatal("another instance is already running", zap.String("lockfile", options.LockFile))
	}
	defer func() { _ = lock.Unlock() }()

	// Probe the keyring: no backend at all is startup-fatal.
	store := secrets.NewKeyring()
	if err := store.Probe(options.VaultService); err != nil {
		zapLogger.Fatal("no usable secret-service backend", zap.Error(err))
	}

	gate := pin.NewGate(store, options.LockService)
	v := vault.New(store, options.VaultService, options.DefaultAutoLockSeconds, zapLogger)
	engine := &otp.Engine{}
	copier := session.NewCodeCopier(session.SystemClipboard{}, options.ClipboardClearDelay)
	defer copier.Close()

	ctrl := session.New(gate, options.MaxPinAttempts, zapLogger, func() {
		fmt.Println("\nSession locked. Enter any command to unlock.")
	})
	defer ctrl.Close()

	// Initial gate: set the PIN on first run, verify it otherwise.
	isSet, err := gate.IsSet()
	if err != nil {
		zapLogger.Fatal("cannot check PIN state", zap.Error(err))
	}
	if !isSet {
		newPin, err := firstRunSetup(gate)
		if err != nil {
			zapLogger.Fatal("PIN setup failed, exiting")
		}
		err = ctrl.Unlock(func(int) (string, error) { return newPin, nil }, true)
		if err != nil {
			zapLogger.Fatal("cannot unlock with freshly set PIN", zap.Error(err))
		}
	} else if err := ctrl.Unlock(pinPrompt, true); err != nil {
		fmt.Println("Access denied. Exiting.")
		os.Exit(1)
	}
	ctrl.SetTimeout(time.Duration(v.AutoLock()) * time.Second)

	// Per-second redisplay hook; the shell only logs the tick at debug
	// level, a graphical front-end would redraw its token cards here.
	refreshCtx, cancelRefresh := context.WithCancel(context.Background())
	defer cancelRefresh()
	session.StartRefresher(refreshCtx, options.RefreshInterval, func(now time.Time) {
		zapLogger.Debug("refresh tick", zap.Time("now", now))
	})

	repl(ctrl, v, gate, engine, copier)
}
