package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airbnb-listings/models"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestDetailSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "details.csv")
	sink, err := OpenDetailSink(path, false)
	require.NoError(t, err)

	n, err := sink.Append(models.DetailRecord{
		DetailsPage:   "<html><body>Line one,\n\"quoted\"</body></html>",
		AmenitiesPage: "<html>amenities</html>",
		Link:          "https://www.airbnb.com/rooms/1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sink.Append(models.FailedRecord("https://www.airbnb.com/rooms/2", models.FailureTimeout))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = sink.Append(models.DetailRecord{
		DetailsPage:   "<p>a\r\nb</p>\r\n",
		AmenitiesPage: models.FailedMarker,
		Link:          "https://www.airbnb.com/rooms/3",
	})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, DetailHeader, rows[0])
	assert.Equal(t, []string{models.FailedMarker, models.FailedMarker, "https://www.airbnb.com/rooms/2"}, rows[2])

	loaded, err := LoadDetails(path)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	ok := loaded["https://www.airbnb.com/rooms/1"]
	assert.True(t, ok.OK())
	assert.Equal(t, "<html><body>Line one,\n\"quoted\"</body></html>", ok.DetailsPage)

	crlf := loaded["https://www.airbnb.com/rooms/3"]
	assert.True(t, crlf.OK())
	assert.Equal(t, "<p>a\r\nb</p>\r\n", crlf.DetailsPage)
	assert.Equal(t, models.FailedMarker, crlf.AmenitiesPage, "a fetched page reading -1 is not a failure")

	failed := loaded["https://www.airbnb.com/rooms/2"]
	assert.False(t, failed.OK())
	assert.Equal(t, models.FailureFetch, failed.Failure)
}

func TestDetailSinkConcurrentAppendsWriteOneHeader(t *testing.T) {
	for _, workers := range []int{1, 4, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "details.csv")
			sink, err := OpenDetailSink(path, false)
			require.NoError(t, err)

			const links = 40
			jobs := make(chan int)
			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range jobs {
						_, err := sink.Append(models.DetailRecord{
							DetailsPage:   "<p>detail</p>",
							AmenitiesPage: "<p>amenities</p>",
							Link:          fmt.Sprintf("https://www.airbnb.com/rooms/%d", i),
						})
						assert.NoError(t, err)
					}
				}()
			}
			for i := 0; i < links; i++ {
				jobs <- i
			}
			close(jobs)
			wg.Wait()

			assert.Equal(t, links, sink.Count())
			require.NoError(t, sink.Close())

			rows := readRows(t, path)
			assert.Len(t, rows, links+1)
			headers := 0
			for _, row := range rows {
				if row[0] == DetailHeader[0] {
					headers++
				}
			}
			assert.Equal(t, 1, headers)

			loaded, err := LoadDetails(path)
			require.NoError(t, err)
			assert.Len(t, loaded, links)
		})
	}
}

func TestDetailSinkResumeAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.csv")

	first, err := OpenDetailSink(path, false)
	require.NoError(t, err)
	_, err = first.Append(models.DetailRecord{DetailsPage: "a", AmenitiesPage: "b", Link: "l1"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	resumed, err := OpenDetailSink(path, true)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Count())

	n, err := resumed.Append(models.DetailRecord{DetailsPage: "c", AmenitiesPage: "d", Link: "l2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, resumed.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, DetailHeader, rows[0])
	assert.Equal(t, "l1", rows[1][2])
	assert.Equal(t, "l2", rows[2][2])
}

func TestDetailSinkResumeOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.csv")

	sink, err := OpenDetailSink(path, true)
	require.NoError(t, err)
	assert.Equal(t, 0, sink.Count())

	_, err = sink.Append(models.DetailRecord{DetailsPage: "a", AmenitiesPage: "b", Link: "l1"})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, DetailHeader, rows[0])
}

func TestDetailSinkTruncatesWithoutResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale,content,here\n"), 0644))

	sink, err := OpenDetailSink(path, false)
	require.NoError(t, err)
	assert.Equal(t, 0, sink.Count())
	_, err = sink.Append(models.DetailRecord{DetailsPage: "a", AmenitiesPage: "b", Link: "l1"})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "stale"))
}

func TestDetailSinkAppendAfterClose(t *testing.T) {
	sink, err := OpenDetailSink(filepath.Join(t.TempDir(), "details.csv"), false)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	_, err = sink.Append(models.DetailRecord{Link: "l1"})
	assert.Error(t, err)
}

func TestLoadDetailsPrefersFetchedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.csv")
	sink, err := OpenDetailSink(path, false)
	require.NoError(t, err)

	for _, rec := range []models.DetailRecord{
		models.FailedRecord("l1", models.FailureTimeout),
		{DetailsPage: "first", AmenitiesPage: "x", Link: "l1"},
		models.FailedRecord("l1", models.FailureFetch),
		{DetailsPage: "old", AmenitiesPage: "x", Link: "l2"},
		{DetailsPage: "new", AmenitiesPage: "x", Link: "l2"},
	} {
		_, err := sink.Append(rec)
		require.NoError(t, err)
	}
	require.NoError(t, sink.Close())

	loaded, err := LoadDetails(path)
	require.NoError(t, err)
	assert.Equal(t, "first", loaded["l1"].DetailsPage)
	assert.True(t, loaded["l1"].OK())
	assert.Equal(t, "new", loaded["l2"].DetailsPage)
}

func TestLoadDetailsRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0644))

	_, err := LoadDetails(path)
	assert.Error(t, err)
}

func TestLoadDetailsMissingFile(t *testing.T) {
	_, err := LoadDetails(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func writeOneRecord(t *testing.T, path string) {
	t.Helper()
	sink, err := OpenDetailSink(path, false)
	require.NoError(t, err)
	_, err = sink.Append(models.DetailRecord{DetailsPage: "<p>one</p>", AmenitiesPage: "<p>a</p>", Link: "l1"})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}

func appendBytes(t *testing.T, path, tail string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(tail)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestDetailSinkResumeCutsPartialRecord(t *testing.T) {
	tails := map[string]string{
		"open quote":     `"""<html><body>half a page`,
		"open quote eol": "\"\"\"<html>\n<body>half a page\n",
		"missing field":  "\"\"\"<p>x</p>\"\"\",l\n",
		"no line ending": "-1,-1,l9",
	}
	for name, tail := range tails {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "details.csv")
			writeOneRecord(t, path)
			appendBytes(t, path, tail)

			loaded, err := LoadDetails(path)
			require.NoError(t, err)
			assert.Len(t, loaded, 1)

			sink, err := OpenDetailSink(path, true)
			require.NoError(t, err)
			assert.Equal(t, 1, sink.Count())
			assert.Equal(t, int64(len(tail)), sink.Dropped())

			_, err = sink.Append(models.DetailRecord{DetailsPage: "<p>two</p>", AmenitiesPage: "<p>b</p>", Link: "l2"})
			require.NoError(t, err)
			require.NoError(t, sink.Close())

			rows := readRows(t, path)
			require.Len(t, rows, 3)
			assert.Equal(t, "l2", rows[2][2])

			loaded, err = LoadDetails(path)
			require.NoError(t, err)
			assert.Equal(t, "<p>one</p>", loaded["l1"].DetailsPage)
			assert.Equal(t, "<p>two</p>", loaded["l2"].DetailsPage)
		})
	}
}

func TestDetailSinkResumeCutsPartialHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.csv")
	require.NoError(t, os.WriteFile(path, []byte("details_page,amen"), 0644))

	sink, err := OpenDetailSink(path, true)
	require.NoError(t, err)
	assert.Equal(t, int64(17), sink.Dropped())
	_, err = sink.Append(models.DetailRecord{DetailsPage: "a", AmenitiesPage: "b", Link: "l1"})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, DetailHeader, rows[0])
}

func TestLoadDetailsRejectsCorruptMiddle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.csv")
	writeOneRecord(t, path)
	appendBytes(t, path, "only,two\n-1,-1,l3\n")

	_, err := LoadDetails(path)
	assert.Error(t, err)

	_, err = OpenDetailSink(path, true)
	assert.Error(t, err)
}
