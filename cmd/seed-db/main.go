// Command seed-db provisions a development database: demo accounts, a
// vendor shop, categories and products from a JSON catalog file, a running
// campaign, and API keys for each demo account.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vendura/vendura/internal/repository"
)

// seedProduct is one entry of the catalog JSON file.
type seedProduct struct {
	ID       string
	Name     string
	Category string
	SKU      string
	Price    decimal.Decimal
	Stock    int
	Image    [4]string // thumbnail, mobile, tablet, desktop
}

// Demo accounts. One API key per account: "<role>:<suffix>" hashed with the
// pepper at seed time.
var seedUsers = []struct {
	id, email, username, role string
}{
	{"seed-admin", "admin@vendura.dev", "admin", "admin"},
	{"seed-vendor", "vendor@vendura.dev", "vendor", "vendor"},
	{"seed-customer", "customer@vendura.dev", "customer", "customer"},
}

func main() {
	var (
		databaseURL  string
		productsFile string
		keySuffix    string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&keySuffix, "key-suffix", "", "API key suffix (or VENDURA_SEED_KEY_SUFFIX env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or VENDURA_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if keySuffix == "" {
		keySuffix = os.Getenv("VENDURA_SEED_KEY_SUFFIX")
	}
	if keySuffix == "" {
		slog.Error("key suffix is required: set --key-suffix or VENDURA_SEED_KEY_SUFFIX")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("VENDURA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, keySuffix, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, keySuffix, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAccounts(ctx, pool, keySuffix, pepper); err != nil {
		return errors.Wrap(err, "seed accounts")
	}
	if err := seedCatalog(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedCampaign(ctx, pool); err != nil {
		return errors.Wrap(err, "seed campaign")
	}

	return nil
}

// seedAccounts creates the demo users, the vendor's shop, and one API key
// per account.
func seedAccounts(ctx context.Context, pool *pgxpool.Pool, keySuffix, pepper string) error {
	slog.Info("seeding demo accounts")

	for _, u := range seedUsers {
		_, err := pool.Exec(ctx, `INSERT INTO users (id, email, username, role, verified)
			VALUES ($1, $2, $3, $4, TRUE) ON CONFLICT (id) DO NOTHING`,
			u.id, u.email, u.username, u.role,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert user %s", u.id)
		}

		key := u.role + ":" + keySuffix
		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(key))
		keyHash := hex.EncodeToString(mac.Sum(nil))

		_, err = pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, name, user_id, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash`,
			"seed-key-"+u.role, keyHash, "Seed "+u.role+" key", u.id,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert api key for %s", u.id)
		}

		slog.Info("seeded account", slog.String("id", u.id), slog.String("role", u.role))
	}

	_, err := pool.Exec(ctx, `INSERT INTO shops (id, owner_id, name, description)
		VALUES ('seed-shop', 'seed-vendor', 'Demo Shop', 'Seeded demo storefront')
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return errors.Wrap(err, "upsert shop")
	}

	return nil
}

// seedCatalog streams the products JSON file and upserts categories and
// products into the vendor shop.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	products, err := decodeProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		categoryID := "cat-" + p.Category
		_, err := pool.Exec(ctx, `INSERT INTO categories (id, name)
			VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			categoryID, p.Category,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert category %s", p.Category)
		}

		_, err = pool.Exec(ctx, `INSERT INTO products (id, shop_id, category_id, name,
				slug, sku, base_price, stock, status,
				image_thumbnail, image_mobile, image_tablet, image_desktop)
			VALUES ($1, 'seed-shop', $2, $3, $4, $5, $6, $7, 'published', $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				base_price = EXCLUDED.base_price, stock = EXCLUDED.stock,
				updated_at = now()`,
			p.ID, categoryID, p.Name, p.ID, p.SKU, p.Price, p.Stock,
			p.Image[0], p.Image[1], p.Image[2], p.Image[3],
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

// decodeProducts parses the catalog array with a streaming decoder.
func decodeProducts(data []byte) ([]seedProduct, error) {
	var products []seedProduct

	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		var p seedProduct
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				p.ID = v
				return err
			case "name":
				v, err := d.Str()
				p.Name = v
				return err
			case "category":
				v, err := d.Str()
				p.Category = v
				return err
			case "sku":
				v, err := d.Str()
				p.SKU = v
				return err
			case "price":
				raw, err := d.Num()
				if err != nil {
					return err
				}
				p.Price, err = decimal.NewFromString(raw.String())
				return err
			case "stock":
				v, err := d.Int()
				p.Stock = v
				return err
			case "image":
				return d.Obj(func(d *jx.Decoder, key string) error {
					v, err := d.Str()
					if err != nil {
						return err
					}
					switch key {
					case "thumbnail":
						p.Image[0] = v
					case "mobile":
						p.Image[1] = v
					case "tablet":
						p.Image[2] = v
					case "desktop":
						p.Image[3] = v
					}
					return nil
				})
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		if p.SKU == "" {
			p.SKU = "sku-" + p.ID
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, err
	}

	return products, nil
}

// seedCampaign creates a month-long site-wide 10% campaign.
func seedCampaign(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding launch campaign")

	now := time.Now().UTC().Truncate(time.Hour)
	_, err := pool.Exec(ctx, `INSERT INTO campaigns (id, name, slug, description, type,
			value, percentage, active, starts_at, ends_at, priority, created_by)
		VALUES ('seed-campaign', 'Launch Sale', 'launch-sale',
			'Site-wide 10% launch discount', 'site_wide',
			10, TRUE, TRUE, $1, $2, 10, 'seed-admin')
		ON CONFLICT (id) DO NOTHING`,
		now, now.AddDate(0, 1, 0),
	)
	return errors.Wrap(err, "upsert campaign")
}
