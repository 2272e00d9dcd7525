package app

import "serotonyl.ru/tradedesk/internal/db/postgres"

// SQL-миграции встроены в код для упрощения деплоя.
var migrations = []postgres.Migration{
	{Version: 1, Name: "profiles", SQL: migration001Profiles},
	{Version: 2, Name: "login_events", SQL: migration002LoginEvents},
	{Version: 3, Name: "wallets", SQL: migration003Wallets},
	{Version: 4, Name: "reward_grants", SQL: migration004RewardGrants},
	{Version: 5, Name: "rank_tiers", SQL: migration005Tiers},
	{Version: 6, Name: "trading_bots", SQL: migration006TradingBots},
	{Version: 7, Name: "deposits", SQL: migration007Deposits},
	{Version: 8, Name: "admin", SQL: migration008Admin},
	{Version: 9, Name: "entity_changes", SQL: migration009EntityChanges},
}

var migration001Profiles = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id UUID PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration002LoginEvents = `
CREATE TABLE IF NOT EXISTS login_events (
    user_id UUID NOT NULL,
    login_date DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, login_date)
);
`

var migration003Wallets = `
CREATE TABLE IF NOT EXISTS bot_wallets (
    user_id UUID PRIMARY KEY,
    free_bots BIGINT NOT NULL DEFAULT 0 CHECK (free_bots >= 0),
    total_granted BIGINT NOT NULL DEFAULT 0,
    total_used BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS wallet_transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL,
    amount BIGINT NOT NULL,
    tx_type VARCHAR(50) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user ON wallet_transactions(user_id, created_at DESC);
`

var migration004RewardGrants = `
CREATE TABLE IF NOT EXISTS reward_grants (
    user_id UUID NOT NULL,
    cycle_start DATE NOT NULL,
    streak INTEGER NOT NULL,
    granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, cycle_start)
);
`

var migration005Tiers = `
CREATE TABLE IF NOT EXISTS rank_tiers (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(64) UNIQUE NOT NULL,
    daily_trades INTEGER NOT NULL CHECK (daily_trades >= 0),
    sort_order INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS user_ranks (
    user_id UUID PRIMARY KEY,
    tier_id BIGINT NOT NULL REFERENCES rank_tiers(id),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
INSERT INTO rank_tiers (name, daily_trades, sort_order) VALUES
    ('Bronze', 5, 10),
    ('Silver', 10, 20),
    ('Gold', 25, 30),
    ('Platinum', 50, 40)
ON CONFLICT (name) DO NOTHING;
`

var migration006TradingBots = `
CREATE TABLE IF NOT EXISTS trading_bots (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    symbol VARCHAR(32) NOT NULL,
    strategy VARCHAR(64) NOT NULL,
    from_free_credit BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_trading_bots_user_created ON trading_bots(user_id, created_at);
`

var migration007Deposits = `
CREATE TABLE IF NOT EXISTS deposits (
    payment_id TEXT PRIMARY KEY,
    user_id UUID NOT NULL,
    price_amount NUMERIC(20,8) NOT NULL,
    price_currency VARCHAR(16) NOT NULL,
    pay_currency VARCHAR(16) NOT NULL,
    pay_address TEXT NOT NULL DEFAULT '',
    pay_amount NUMERIC(30,12) NOT NULL DEFAULT 0,
    status VARCHAR(32) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_deposits_user ON deposits(user_id);
`

var migration008Admin = `
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempt_time DESC);
`

// Триггеры сообщают другим инстансам об изменениях через
// pg_notify('entity_changes'). Для rank_tiers user_id не передаётся.
var migration009EntityChanges = `
CREATE OR REPLACE FUNCTION notify_entity_change() RETURNS trigger AS $$
DECLARE
    rec RECORD;
    payload JSONB;
BEGIN
    IF TG_OP = 'DELETE' THEN
        rec := OLD;
    ELSE
        rec := NEW;
    END IF;

    payload := jsonb_build_object(
        'entity', TG_ARGV[0],
        'kind', CASE TG_OP WHEN 'INSERT' THEN 'created' WHEN 'UPDATE' THEN 'updated' ELSE 'deleted' END
    );
    IF TG_ARGV[0] <> 'rank_tier' THEN
        payload := payload || jsonb_build_object('user_id', rec.user_id);
    END IF;

    PERFORM pg_notify('entity_changes', payload::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_login_events_notify ON login_events;
CREATE TRIGGER trg_login_events_notify AFTER INSERT ON login_events
    FOR EACH ROW EXECUTE FUNCTION notify_entity_change('login_event');

DROP TRIGGER IF EXISTS trg_reward_grants_notify ON reward_grants;
CREATE TRIGGER trg_reward_grants_notify AFTER INSERT ON reward_grants
    FOR EACH ROW EXECUTE FUNCTION notify_entity_change('reward_grant');

DROP TRIGGER IF EXISTS trg_trading_bots_notify ON trading_bots;
CREATE TRIGGER trg_trading_bots_notify AFTER INSERT OR DELETE ON trading_bots
    FOR EACH ROW EXECUTE FUNCTION notify_entity_change('trading_bot');

DROP TRIGGER IF EXISTS trg_user_ranks_notify ON user_ranks;
CREATE TRIGGER trg_user_ranks_notify AFTER INSERT OR UPDATE OR DELETE ON user_ranks
    FOR EACH ROW EXECUTE FUNCTION notify_entity_change('user_rank');

DROP TRIGGER IF EXISTS trg_rank_tiers_notify ON rank_tiers;
CREATE TRIGGER trg_rank_tiers_notify AFTER INSERT OR UPDATE OR DELETE ON rank_tiers
    FOR EACH ROW EXECUTE FUNCTION notify_entity_change('rank_tier');

DROP TRIGGER IF EXISTS trg_bot_wallets_notify ON bot_wallets;
CREATE TRIGGER trg_bot_wallets_notify AFTER INSERT OR UPDATE ON bot_wallets
    FOR EACH ROW EXECUTE FUNCTION notify_entity_change('wallet');
`
