package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/kodbank/internal/model"
	"github.com/lib/pq"
)

const accountColumns = `id, customer_id, name, email, phone, password_hash, balance, created_at, updated_at`

// queryer は *sql.DB と *sql.Tx の共通部分。
// 同じクエリ実装をトランザクション内外で使い回すために使う。
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner は *sql.Row と *sql.Rows の共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresAccountRepo はPostgreSQLを使用した口座リポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
	accountQueries
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db, accountQueries: accountQueries{q: db}}
}

// FindByEmail はメールアドレスで口座を取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`,
		email,
	)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

// Create は口座を作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID, account.CustomerID, account.Name, account.Email, account.Phone,
		account.PasswordHash, account.Balance, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

// WithinTx はfnを単一のトランザクション内で実行する。
// fnがエラーを返した場合、またはコミットに失敗した場合はすべての変更が破棄される。
func (r *PostgresAccountRepo) WithinTx(ctx context.Context, fn func(tx AccountTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresAccountTx{accountQueries{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// postgresAccountTx はトランザクションに束縛された口座操作。
type postgresAccountTx struct {
	accountQueries
}

// LockForUpdate は指定IDの口座行をID昇順で SELECT ... FOR UPDATE する。
// 常に同じ順序でロックするため、双方向の同時送金でデッドロックしない。
func (t *postgresAccountTx) LockForUpdate(ctx context.Context, ids ...string) ([]*model.Account, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE id = ANY($1)
		 ORDER BY id
		 FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan locked account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locked accounts: %w", err)
	}
	return accounts, nil
}

// accountQueries はトランザクション内外で共通の口座クエリ。
type accountQueries struct {
	q queryer
}

// FindByID は指定IDの口座を取得する。見つからない場合はnilを返す。
func (a accountQueries) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := a.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindByCustomerID はカスタマーIDで口座を取得する。見つからない場合はnilを返す。
func (a accountQueries) FindByCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	row := a.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE customer_id = $1`,
		customerID,
	)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by customer ID: %w", err)
	}
	return account, nil
}

// Credit は残高を加算し、加算後の残高を返す。
func (a accountQueries) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := a.q.QueryRowContext(ctx,
		`UPDATE accounts
		 SET balance = balance + $1, updated_at = now()
		 WHERE id = $2
		 RETURNING balance`,
		amount, id,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit account: %w", err)
	}
	return balance, nil
}

// DebitIfSufficient は残高チェックと減算を単一のUPDATEで行う。
// 読み取りと書き込みを分けないため、同時実行でも残高が負にならない。
func (a accountQueries) DebitIfSufficient(ctx context.Context, id string, amount int64) (int64, bool, error) {
	var balance int64
	err := a.q.QueryRowContext(ctx,
		`UPDATE accounts
		 SET balance = balance - $1, updated_at = now()
		 WHERE id = $2 AND balance >= $1
		 RETURNING balance`,
		amount, id,
	).Scan(&balance)
	if err == nil {
		return balance, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("failed to debit account: %w", err)
	}

	// 更新0件: 口座が無いのか残高不足なのかを区別する
	var exists bool
	if err := a.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`,
		id,
	).Scan(&exists); err != nil {
		return 0, false, fmt.Errorf("failed to check account existence: %w", err)
	}
	if !exists {
		return 0, false, ErrNotFound
	}
	return 0, false, nil
}

// scanAccount は1行分の口座データを読み取る。
func scanAccount(row rowScanner) (*model.Account, error) {
	account := &model.Account{}
	err := row.Scan(
		&account.ID, &account.CustomerID, &account.Name, &account.Email, &account.Phone,
		&account.PasswordHash, &account.Balance, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// translateUniqueViolation は一意制約違反をリポジトリのセンチネルエラーに変換する。
func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "accounts_email_key":
			return ErrDuplicateEmail
		case "accounts_customer_id_key":
			return ErrDuplicateCustomerID
		}
	}
	return fmt.Errorf("failed to create account: %w", err)
}

// compile-time interface check
var (
	_ AccountRepository = (*PostgresAccountRepo)(nil)
	_ AccountTx         = (*postgresAccountTx)(nil)
)
