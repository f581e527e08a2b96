package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	number         INTEGER NOT NULL DEFAULT 0,
	customer_name  TEXT NOT NULL,
	customer_email TEXT NOT NULL DEFAULT '',
	total          TEXT NOT NULL,
	item_count     INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'placed'
		CHECK(status IN ('placed', 'assigned', 'delivering', 'delivered', 'cancelled')),
	rider_id       TEXT,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS order_items (
	order_id   INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	sku        TEXT NOT NULL,
	name       TEXT NOT NULL,
	quantity   INTEGER NOT NULL CHECK(quantity > 0),
	unit_price TEXT NOT NULL,
	PRIMARY KEY (order_id, sku)
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_number ON orders(number) WHERE number > 0;
CREATE INDEX IF NOT EXISTS idx_orders_rider_id ON orders(rider_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
