package filedrop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Helloworld152/hft-eb/internal/schema"
)

func writeDrop(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFile(t *testing.T) {
	path := writeDrop(t, `ticker,direction,offset,ref_price,volume,account_id,start_time,end_time,algo,interval_sec
au2606,B,O,500.0,2,A1,09:00:00,15:00:00,direct,
rb2501,S,T,4000,60,A1,09:30:00,09:40:00,twap,10
`)
	rows, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "au2606", rows[0].Ticker)
	require.Equal(t, schema.DirBuy, rows[0].Direction)
	require.Equal(t, schema.OffsetOpen, rows[0].Offset)
	require.Equal(t, 500.0, rows[0].RefPrice)
	require.Equal(t, int32(2), rows[0].Volume)
	require.Equal(t, "A1", rows[0].AccountID)
	require.Equal(t, "direct", rows[0].Algo)
	require.Zero(t, rows[0].IntervalSec)

	require.Equal(t, schema.DirSell, rows[1].Direction)
	require.Equal(t, schema.OffsetCloseToday, rows[1].Offset)
	require.Equal(t, "twap", rows[1].Algo)
	require.Equal(t, 10, rows[1].IntervalSec)
}

func TestParseFileRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"bad direction": "t,X,O,1,1,A,,,direct",
		"bad offset":    "t,B,Q,1,1,A,,,direct",
		"bad price":     "t,B,O,abc,1,A,,,direct",
		"bad volume":    "t,B,O,1,0,A,,,direct",
		"bad algo":      "t,B,O,1,1,A,,,vwap",
		"short row":     "t,B,O,1,1",
	}
	for name, row := range cases {
		path := writeDrop(t, "header\n"+row+"\n")
		_, err := ParseFile(path)
		require.ErrorIsf(t, err, ErrBadRow, "case %s", name)
	}
}

func TestParseFileHeaderOnly(t *testing.T) {
	path := writeDrop(t, "ticker,direction,offset,ref_price,volume,account_id,start_time,end_time,algo\n")
	rows, err := ParseFile(path)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestWindowSeconds(t *testing.T) {
	require.Equal(t, 600, windowSeconds("09:30:00", "09:40:00"))
	require.Equal(t, 0, windowSeconds("bad", "09:40:00"))
	require.Equal(t, 0, windowSeconds("09:40:00", "09:30:00"))
}
