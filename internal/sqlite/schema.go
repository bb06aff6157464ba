package sqlite

const schema = `
	CREATE TABLE IF NOT EXISTS virtual_accounts (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		iban TEXT NOT NULL,
		status TEXT NOT NULL,
		balance_cents INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_virtual_accounts_owner_active
		ON virtual_accounts (owner_user_id, currency)
		WHERE status = 'ACTIVE';

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		virtual_account_id TEXT NOT NULL REFERENCES virtual_accounts(id),
		transaction_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		balance_after_cents INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_account
		ON ledger_entries (virtual_account_id, created_at);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_transaction
		ON ledger_entries (transaction_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		state TEXT NOT NULL,
		from_account_id TEXT,
		to_account_id TEXT,
		source_currency TEXT NOT NULL,
		target_currency TEXT NOT NULL,
		source_amount_cents INTEGER NOT NULL,
		target_amount_cents INTEGER NOT NULL,
		applied_rate TEXT,
		counterparty_ref TEXT NOT NULL DEFAULT '',
		counterparty_iban TEXT NOT NULL DEFAULT '',
		external_request_id TEXT NOT NULL DEFAULT '',
		external_challenge_id TEXT NOT NULL DEFAULT '',
		challenge_deadline TIMESTAMP,
		idempotency_key TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idempotency_key
		ON transactions (idempotency_key)
		WHERE idempotency_key != '';

	CREATE INDEX IF NOT EXISTS idx_transactions_state
		ON transactions (state);

	CREATE TABLE IF NOT EXISTS master_accounts (
		currency TEXT PRIMARY KEY,
		correspondent_bank_id TEXT NOT NULL,
		external_account_id TEXT NOT NULL,
		iban TEXT NOT NULL,
		bic TEXT NOT NULL,
		cached_external_balance_cents INTEGER NOT NULL DEFAULT 0,
		cached_at TIMESTAMP
	);
`
