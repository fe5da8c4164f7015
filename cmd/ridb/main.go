// Command ridb is a smoke-testing CLI over the storage facade: it opens a
// database backed by either the sqlitekv or in-memory backend, loads a
// schema from a JSON file, and runs a single create/find/count/delete
// operation against it (§6.6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/trust0-project/ridb/internal/backends"
	"github.com/trust0-project/ridb/internal/backends/memory"
	"github.com/trust0-project/ridb/internal/backends/sqlitekv"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/storage"
	"github.com/trust0-project/ridb/internal/types"
)

// target fields are shared by every subcommand.
type target struct {
	DB         string `help:"Path to the sqlitekv database directory." default:"./ridb-data"`
	Collection string `help:"Collection name." required:""`
	Schema     string `help:"Path to the collection's schema JSON file." required:""`
	Password   string `help:"Encryption password, if the schema declares encrypted fields."`
	InMemory   bool   `help:"Use the in-memory backend instead of sqlitekv."`
}

func (t *target) open(ctx context.Context) (*storage.Database, *storage.Collection, error) {
	raw, err := os.ReadFile(t.Schema)
	if err != nil {
		return nil, nil, err
	}

	doc, err := types.ParseJSON(raw)
	if err != nil {
		return nil, nil, err
	}

	s, err := schema.Parse(doc)
	if err != nil {
		return nil, nil, err
	}

	var b backends.Backend
	if t.InMemory {
		b = memory.New()
	} else {
		if err := os.MkdirAll(t.DB, 0o755); err != nil {
			return nil, nil, err
		}

		b = sqlitekv.New(t.DB)
	}

	db, err := storage.Open(storage.Options{
		Name:     t.DB,
		Schemas:  map[string]*schema.Schema{t.Collection: s},
		Password: t.Password,
		Backend:  b,
		L:        zap.NewExample(),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := db.Start(ctx); err != nil {
		return nil, nil, err
	}

	coll, err := db.Collection(t.Collection)
	if err != nil {
		return nil, nil, err
	}

	return db, coll, nil
}

type createCmd struct {
	target
	Doc string `help:"Path to the document JSON file to create." required:""`
}

func (c *createCmd) Run() error {
	ctx := context.Background()

	db, coll, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	raw, err := os.ReadFile(c.Doc)
	if err != nil {
		return err
	}

	doc, err := types.ParseJSON(raw)
	if err != nil {
		return err
	}

	stored, err := coll.Create(ctx, doc)
	if err != nil {
		return err
	}

	return printDoc(stored)
}

type findCmd struct {
	target
	Query string `help:"Path to the query JSON file." required:""`
}

func (c *findCmd) Run() error {
	ctx := context.Background()

	db, coll, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	q, err := readDoc(c.Query)
	if err != nil {
		return err
	}

	results, err := coll.Find(ctx, q)
	if err != nil {
		return err
	}

	for _, doc := range results {
		if err := printDoc(doc); err != nil {
			return err
		}
	}

	return nil
}

type countCmd struct {
	target
	Query string `help:"Path to the query JSON file." required:""`
}

func (c *countCmd) Run() error {
	ctx := context.Background()

	db, coll, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	q, err := readDoc(c.Query)
	if err != nil {
		return err
	}

	count, err := coll.Count(ctx, q)
	if err != nil {
		return err
	}

	fmt.Println(count)

	return nil
}

type deleteCmd struct {
	target
	PK string `help:"Primary key value of the document to delete." required:""`
}

func (c *deleteCmd) Run() error {
	ctx := context.Background()

	db, coll, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	return coll.Delete(ctx, c.PK)
}

var cli struct {
	Create createCmd `cmd:"" help:"Create a document."`
	Find   findCmd   `cmd:"" help:"Find documents matching a query."`
	Count  countCmd  `cmd:"" help:"Count documents matching a query."`
	Delete deleteCmd `cmd:"" help:"Delete a document by primary key."`
}

func main() {
	kctx := kong.Parse(&cli)
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}

func readDoc(path string) (*types.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return types.ParseJSON(raw)
}

func printDoc(doc *types.Document) error {
	encoded, err := types.MarshalJSON(doc)
	if err != nil {
		return err
	}

	fmt.Println(string(encoded))

	return nil
}
