package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/LdDl/featrack-go/featrack"
	"github.com/pkg/errors"
)

// writeTracksCSV writes one row per track: id;frame:x,y|frame:x,y|...
func writeTracksCSV(w io.Writer, set *featrack.TrackSet) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	err := writer.Write([]string{"id", "track"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	for _, track := range set.Tracks() {
		states := track.States()
		data := make([]string, len(states))
		for idx, state := range states {
			data[idx] = fmt.Sprintf("%d:%f,%f", state.Frame, state.Feature.Location.X, state.Feature.Location.Y)
		}
		err = writer.Write([]string{strconv.FormatInt(track.ID(), 10), strings.Join(data, "|")})
		if err != nil {
			return errors.Wrapf(err, "Can't write track %d", track.ID())
		}
	}
	writer.Flush()
	return writer.Error()
}
