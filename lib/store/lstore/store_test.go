package lstore

import (
	"testing"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
	storetesting "github.com/ValentinKolb/nora/lib/store/testing"
)

func Test(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore", func() store.IStore {
		return NewLocalStore(db.NewTree)
	})
}
