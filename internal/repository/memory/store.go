// Package memory はリポジトリインターフェースのインメモリ実装を提供する。
// 単一のミューテックスで全操作を直列化するため、トランザクションはSERIALIZABLE相当になる。
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/kodbank/internal/model"
	"github.com/hitoshi/kodbank/internal/repository"
)

// Store は口座とトークンをメモリ上に保持する。
type Store struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	tokens   map[string]*model.SessionToken
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*model.Account),
		tokens:   make(map[string]*model.SessionToken),
	}
}

// --- 口座 ---

// FindByID は指定IDの口座のコピーを返す。見つからない場合はnilを返す。
func (s *Store) FindByID(_ context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByID(id, nil), nil
}

// FindByCustomerID はカスタマーIDで口座のコピーを返す。見つからない場合はnilを返す。
func (s *Store) FindByCustomerID(_ context.Context, customerID string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByCustomerID(customerID, nil), nil
}

// FindByEmail はメールアドレスで口座のコピーを返す。見つからない場合はnilを返す。
func (s *Store) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// Create は口座を保存する。メールアドレスとカスタマーIDは一意でなければならない。
func (s *Store) Create(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
		if a.CustomerID == account.CustomerID {
			return repository.ErrDuplicateCustomerID
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

// Credit は残高を加算する。
func (s *Store) Credit(_ context.Context, id string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.Balance += amount
	return a.Balance, nil
}

// DebitIfSufficient は残高がamount以上の場合のみ減算する。
func (s *Store) DebitIfSufficient(_ context.Context, id string, amount int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return 0, false, repository.ErrNotFound
	}
	if a.Balance < amount {
		return 0, false, nil
	}
	a.Balance -= amount
	return a.Balance, true, nil
}

// WithinTx はストア全体をロックした状態でfnを実行する。
// 残高の変更はステージングされ、fnが成功した場合のみ反映される。
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.AccountTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{s: s, staged: make(map[string]int64)}
	if err := fn(tx); err != nil {
		return err
	}

	for id, balance := range tx.staged {
		s.accounts[id].Balance = balance
	}
	return nil
}

// --- トークン ---

// CreateToken はトークンを保存する。
func (s *Store) CreateToken(_ context.Context, token *model.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.Value] = &cp
	return nil
}

// FindToken はトークン値で記録を返す。見つからない場合はnilを返す。
func (s *Store) FindToken(_ context.Context, value string) (*model.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[value]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// DeleteToken はトークンを削除する。
func (s *Store) DeleteToken(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, value)
	return nil
}

// TokenCount は保持しているトークン数を返す。
func (s *Store) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Tokens はTokenRepositoryとしてのビューを返す。
func (s *Store) Tokens() repository.TokenRepository {
	return tokenView{s: s}
}

// --- 内部 ---

func (s *Store) findByID(id string, staged map[string]int64) *model.Account {
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	if b, ok := staged[id]; ok {
		cp.Balance = b
	}
	return &cp
}

func (s *Store) findByCustomerID(customerID string, staged map[string]int64) *model.Account {
	for _, a := range s.accounts {
		if a.CustomerID == customerID {
			return s.findByID(a.ID, staged)
		}
	}
	return nil
}

// memTx はWithinTx実行中のビュー。Storeのロックは呼び出し元が保持している。
type memTx struct {
	s      *Store
	staged map[string]int64
}

func (t *memTx) FindByID(_ context.Context, id string) (*model.Account, error) {
	return t.s.findByID(id, t.staged), nil
}

func (t *memTx) FindByCustomerID(_ context.Context, customerID string) (*model.Account, error) {
	return t.s.findByCustomerID(customerID, t.staged), nil
}

func (t *memTx) LockForUpdate(_ context.Context, ids ...string) ([]*model.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var out []*model.Account
	seen := make(map[string]bool)
	for _, id := range sorted {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a := t.s.findByID(id, t.staged); a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memTx) Credit(_ context.Context, id string, amount int64) (int64, error) {
	a := t.s.findByID(id, t.staged)
	if a == nil {
		return 0, repository.ErrNotFound
	}
	t.staged[id] = a.Balance + amount
	return t.staged[id], nil
}

func (t *memTx) DebitIfSufficient(_ context.Context, id string, amount int64) (int64, bool, error) {
	a := t.s.findByID(id, t.staged)
	if a == nil {
		return 0, false, repository.ErrNotFound
	}
	if a.Balance < amount {
		return 0, false, nil
	}
	t.staged[id] = a.Balance - amount
	return t.staged[id], true, nil
}

// tokenView はStoreをTokenRepositoryとして公開する。
type tokenView struct {
	s *Store
}

func (v tokenView) Create(ctx context.Context, token *model.SessionToken) error {
	return v.s.CreateToken(ctx, token)
}

func (v tokenView) FindByValue(ctx context.Context, value string) (*model.SessionToken, error) {
	return v.s.FindToken(ctx, value)
}

func (v tokenView) DeleteByValue(ctx context.Context, value string) error {
	return v.s.DeleteToken(ctx, value)
}

// compile-time interface check
var (
	_ repository.AccountRepository = (*Store)(nil)
	_ repository.AccountTx         = (*memTx)(nil)
	_ repository.TokenRepository   = tokenView{}
)
