// SPDX-License-Identifier: Apache-2.0

package decode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmirror/pgmirror/pkg/decode"
	"github.com/pgmirror/pgmirror/pkg/rowevent"
)

func TestDecoder_ControlOnlyTransaction(t *testing.T) {
	t.Parallel()

	d := decode.New()

	events, errs := d.Feed("BEGIN 1234")
	assert.Empty(t, events)
	assert.Empty(t, errs)
	assert.True(t, d.HasPending())

	events, errs = d.Feed("COMMIT 1234")
	assert.Empty(t, events)
	assert.Empty(t, errs)
	assert.False(t, d.HasPending())
}

func TestDecoder_SingleInsert(t *testing.T) {
	t.Parallel()

	d := decode.New()

	_, errs := d.Feed("BEGIN 1234")
	require.Empty(t, errs)

	line := `table public.book: INSERT: id[integer]:10 isbn[character varying]:'888' title[character varying]:'My book title' description[character varying]:null copyright[character varying]:null tags[jsonb]:null publisher_id[integer]:null`
	events, errs := d.Feed(line)
	require.Empty(t, errs)
	assert.Empty(t, events, "no events emitted until COMMIT")

	events, errs = d.Feed("COMMIT 1234")
	require.Empty(t, errs)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "public", ev.Schema)
	assert.Equal(t, "book", ev.Table)
	assert.Equal(t, rowevent.OpInsert, ev.Operation)
	assert.Equal(t, uint64(1234), ev.XID)

	id, ok := ev.New.Get("id")
	require.True(t, ok)
	assert.Equal(t, int64(10), id.Get())

	isbn, ok := ev.New.Get("isbn")
	require.True(t, ok)
	assert.Equal(t, "888", isbn.Get())

	title, ok := ev.New.Get("title")
	require.True(t, ok)
	assert.Equal(t, "My book title", title.Get())

	desc, ok := ev.New.Get("description")
	require.True(t, ok)
	assert.True(t, desc.IsNull())

	assert.Equal(t, []string{"id", "isbn", "title", "description", "copyright", "tags", "publisher_id"}, ev.New.Names())
}

func TestDecoder_EmbeddedQuote(t *testing.T) {
	t.Parallel()

	d := decode.New()
	_, _ = d.Feed("BEGIN 1")
	line := `table public.book: INSERT: title[character varying]:'it''s here'`
	_, errs := d.Feed(line)
	require.Empty(t, errs)

	events, _ := d.Feed("COMMIT 1")
	require.Len(t, events, 1)

	title, ok := events[0].New.Get("title")
	require.True(t, ok)
	assert.Equal(t, "it's here", title.Get())
}

func TestDecoder_DeleteCarriesOldTuple(t *testing.T) {
	t.Parallel()

	d := decode.New()
	_, _ = d.Feed("BEGIN 5")
	_, errs := d.Feed(`table public.book: DELETE: id[integer]:42`)
	require.Empty(t, errs)

	events, _ := d.Feed("COMMIT 5")
	require.Len(t, events, 1)
	assert.Equal(t, rowevent.OpDelete, events[0].Operation)
	id, ok := events[0].Old.Get("id")
	require.True(t, ok)
	assert.Equal(t, int64(42), id.Get())
	assert.Empty(t, events[0].New)
}

func TestDecoder_UpdateWithOldKey(t *testing.T) {
	t.Parallel()

	d := decode.New()
	_, _ = d.Feed("BEGIN 6")
	line := `table public.book: UPDATE: old-key: id[integer]:1 new-tuple: id[integer]:1 title[character varying]:'new title'`
	_, errs := d.Feed(line)
	require.Empty(t, errs)

	events, _ := d.Feed("COMMIT 6")
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, rowevent.OpUpdate, ev.Operation)

	oldID, ok := ev.Old.Get("id")
	require.True(t, ok)
	assert.Equal(t, int64(1), oldID.Get())

	newTitle, ok := ev.New.Get("title")
	require.True(t, ok)
	assert.Equal(t, "new title", newTitle.Get())
}

func TestDecoder_UpdateWithoutOldKey(t *testing.T) {
	t.Parallel()

	d := decode.New()
	_, _ = d.Feed("BEGIN 7")
	line := `table public.book: UPDATE: id[integer]:1 title[character varying]:'new title'`
	_, errs := d.Feed(line)
	require.Empty(t, errs)

	events, _ := d.Feed("COMMIT 7")
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Old)
	title, ok := events[0].New.Get("title")
	require.True(t, ok)
	assert.Equal(t, "new title", title.Get())
}

func TestDecoder_Truncate(t *testing.T) {
	t.Parallel()

	d := decode.New()
	_, _ = d.Feed("BEGIN 8")
	_, errs := d.Feed(`table public.book: TRUNCATE: (no-flags)`)
	require.Empty(t, errs)

	events, _ := d.Feed("COMMIT 8")
	require.Len(t, events, 1)
	assert.Equal(t, rowevent.OpTruncate, events[0].Operation)
}

func TestDecoder_MalformedLineYieldsDecodeError(t *testing.T) {
	t.Parallel()

	d := decode.New()
	_, _ = d.Feed("BEGIN 9")
	_, errs := d.Feed(`table public.book: FROBNICATE: id[integer]:1`)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unknown operation token")
}

func TestDecoder_UnterminatedTransactionIsHeldBack(t *testing.T) {
	t.Parallel()

	d := decode.New()
	_, _ = d.Feed("BEGIN 10")
	events, errs := d.Feed(`table public.book: INSERT: id[integer]:1`)
	require.Empty(t, errs)
	assert.Empty(t, events)
	assert.True(t, d.HasPending())
}

func TestIsControlLine(t *testing.T) {
	t.Parallel()

	assert.True(t, decode.IsControlLine("BEGIN 1234"))
	assert.True(t, decode.IsControlLine("COMMIT 1234"))
	assert.False(t, decode.IsControlLine("table public.book: INSERT: id[integer]:1"))
}
