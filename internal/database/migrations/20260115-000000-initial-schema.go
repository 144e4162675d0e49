package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260115-000000",
		Description: "Initial schema",
		Up: []string{
			// Credit accounts - one row per user, created lazily with
			// the starter grant on first access.
			// user_id is the JWT subject (no FK; users live in the IdP)
			`CREATE TABLE IF NOT EXISTS user_credits (
				user_id TEXT PRIMARY KEY,
				total_credits INTEGER NOT NULL DEFAULT 0,
				total_earned INTEGER NOT NULL DEFAULT 0,
				total_spent INTEGER NOT NULL DEFAULT 0,
				last_daily_credit TEXT,
				daily_credit_amount INTEGER NOT NULL DEFAULT 50,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Credit ledger - immutable, one row per balance mutation.
			// stripe_payment_id UNIQUE makes purchase recording idempotent.
			`CREATE TABLE IF NOT EXISTS credit_transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL,
				amount INTEGER NOT NULL,
				balance_after INTEGER NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				stripe_payment_id TEXT UNIQUE,
				conversation_id TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_id ON credit_transactions(user_id, created_at)`,

			// Financial transactions - imported from CSV or entered manually
			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				date TEXT NOT NULL,
				amount REAL NOT NULL,
				description TEXT NOT NULL,
				category_id TEXT,
				source_id TEXT,
				notes TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id, date)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id)`,

			// Categories - user-defined transaction groupings
			`CREATE TABLE IF NOT EXISTS categories (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				color TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				UNIQUE(user_id, name)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_categories_user_id ON categories(user_id)`,

			// Sources - where transactions came from (bank, card, import)
			`CREATE TABLE IF NOT EXISTS sources (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				kind TEXT NOT NULL DEFAULT 'import',
				created_at TEXT NOT NULL,
				UNIQUE(user_id, name)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sources_user_id ON sources(user_id)`,

			// AI chat conversations
			`CREATE TABLE IF NOT EXISTS ai_conversations (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				provider TEXT NOT NULL,
				model TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ai_conversations_user_id ON ai_conversations(user_id, updated_at)`,

			// AI chat messages
			`CREATE TABLE IF NOT EXISTS ai_messages (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				tokens_input INTEGER NOT NULL DEFAULT 0,
				tokens_output INTEGER NOT NULL DEFAULT 0,
				credits_charged INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				FOREIGN KEY (conversation_id) REFERENCES ai_conversations(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ai_messages_conversation ON ai_messages(conversation_id, created_at)`,

			// Desktop sessions - one serialized layout snapshot per user
			`CREATE TABLE IF NOT EXISTS desktop_sessions (
				user_id TEXT PRIMARY KEY,
				snapshot_json TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Per-user custom AI endpoint settings
			`CREATE TABLE IF NOT EXISTS user_ai_settings (
				user_id TEXT PRIMARY KEY,
				custom_enabled INTEGER NOT NULL DEFAULT 0,
				custom_base_url TEXT NOT NULL DEFAULT '',
				custom_model TEXT NOT NULL DEFAULT '',
				api_key_encrypted TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	})
}
