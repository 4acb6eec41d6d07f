package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"askforge-client/api"
	"askforge-client/utils"
)

// LoginState is a step of the login flow.
type LoginState int

const (
	LoginIdle LoginState = iota
	LoginAttempting
	LoginSuccess
	LoginCredentialFailure
	LoginConnectionFailure
	LoginExhaustedRetries
)

func (s LoginState) String() string {
	switch s {
	case LoginIdle:
		return "idle"
	case LoginAttempting:
		return "attempting"
	case LoginSuccess:
		return "success"
	case LoginCredentialFailure:
		return "credential_failure"
	case LoginConnectionFailure:
		return "connection_failure"
	case LoginExhaustedRetries:
		return "exhausted_retries"
	default:
		return fmt.Sprintf("LoginState(%d)", int(s))
	}
}

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

var (
	ErrMissingCredentials = errors.New("Preencha email e senha")
	ErrLoginInProgress    = errors.New("login already in progress")
)

// Authenticator performs the remote login. *api.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.User, error)
	SetBaseURL(u string)
}

// CredentialSaver persists or forgets the remembered login.
// *utils.CredentialStore implements it.
type CredentialSaver interface {
	Save(creds utils.Credentials) error
	Remove() error
}

// LoginResult is the outcome of one Login call.
type LoginResult struct {
	State    LoginState
	User     *api.User
	Err      error
	Attempts int
}

// LoginFlow drives credential submission with bounded retries on connection
// errors. Credential and server errors are never retried. Every transition
// is reported through the status callback.
type LoginFlow struct {
	auth   Authenticator
	saver  CredentialSaver
	logger *utils.Logger

	MaxAttempts int
	RetryDelay  time.Duration

	// OnStatus receives each transition with a message for the login screen.
	// It is called from the goroutine running Login.
	OnStatus func(state LoginState, message string)

	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    LoginState
	attempts int
}

// NewLoginFlow creates a flow with the default retry policy. saver may be nil.
func NewLoginFlow(auth Authenticator, saver CredentialSaver, logger *utils.Logger) *LoginFlow {
	return &LoginFlow{
		auth:        auth,
		saver:       saver,
		logger:      logger,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the current state.
func (f *LoginFlow) State() LoginState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Attempts returns the number of attempts made since the last reset.
func (f *LoginFlow) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *LoginFlow) transition(state LoginState, message string) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()

	f.logger.Debug("Login %s: %s", state, message)
	if f.OnStatus != nil {
		f.OnStatus(state, message)
	}
}

// Login blocks until the flow settles in Success, CredentialFailure or
// ExhaustedRetries. Run it off the UI goroutine.
func (f *LoginFlow) Login(ctx context.Context, email, password string, remember bool) LoginResult {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		f.transition(LoginIdle, ErrMissingCredentials.Error())
		return LoginResult{State: LoginIdle, Err: ErrMissingCredentials}
	}

	f.mu.Lock()
	if f.state == LoginAttempting || f.state == LoginConnectionFailure {
		f.mu.Unlock()
		return LoginResult{State: LoginAttempting, Err: ErrLoginInProgress}
	}
	f.attempts = 0
	f.mu.Unlock()

	for {
		f.mu.Lock()
		f.attempts++
		attempt := f.attempts
		f.mu.Unlock()

		msg := "Conectando ao servidor..."
		if attempt > 1 {
			msg = fmt.Sprintf("Conectando ao servidor (tentativa %d/%d)...", attempt, f.MaxAttempts)
		}
		f.transition(LoginAttempting, msg)

		user, err := f.auth.Login(ctx, email, password)
		if err == nil {
			f.persist(email, password, remember)
			f.transition(LoginSuccess, fmt.Sprintf("Bem-vindo, %s!", user.Name))
			return LoginResult{State: LoginSuccess, User: user, Attempts: attempt}
		}

		if !IsConnectionError(err) {
			f.transition(LoginCredentialFailure, "Erro: "+err.Error())
			return LoginResult{State: LoginCredentialFailure, Err: err, Attempts: attempt}
		}

		if attempt >= f.MaxAttempts {
			f.transition(LoginExhaustedRetries,
				fmt.Sprintf("Não foi possível conectar ao servidor após %d tentativas.", f.MaxAttempts))
			return LoginResult{State: LoginExhaustedRetries, Err: err, Attempts: attempt}
		}

		f.transition(LoginConnectionFailure, "Falha na conexão. Tentando novamente...")
		if err := f.sleep(ctx, f.RetryDelay); err != nil {
			f.transition(LoginIdle, "Login cancelado.")
			return LoginResult{State: LoginIdle, Err: err, Attempts: attempt}
		}
	}
}

func (f *LoginFlow) persist(email, password string, remember bool) {
	if f.saver == nil {
		return
	}
	var err error
	if remember {
		err = f.saver.Save(utils.Credentials{Email: email, Password: password})
	} else {
		err = f.saver.Remove()
	}
	if err != nil {
		f.logger.Warn("Failed to update saved credentials: %v", err)
	}
}

// Reconfigure applies a new server address after retries ran out, resets
// the attempt count and returns the flow to Idle.
func (f *LoginFlow) Reconfigure(newURL string) {
	f.auth.SetBaseURL(newURL)

	f.mu.Lock()
	f.attempts = 0
	f.mu.Unlock()

	f.transition(LoginIdle, "URL atualizada. Tente fazer login novamente.")
}
