package dataset

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// LoadIndex reads the serialized record index: a JSON array of sample
// records in storage order (consecutive records of one scene are adjacent).
// Every record is validated before the store is handed out; all validation
// failures are reported together.
func LoadIndex(path string) ([]SampleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening record index %q", path)
	}
	defer f.Close()

	var infos []SampleRecord
	if err := json.NewDecoder(f).Decode(&infos); err != nil {
		return nil, errors.Wrapf(err, "decoding record index %q", path)
	}

	var verr error
	for i := range infos {
		if err := infos[i].Validate(fmt.Sprintf("infos.%d", i)); err != nil {
			verr = multierr.Append(verr, err)
		}
	}
	if verr != nil {
		return nil, errors.Wrapf(verr, "validating record index %q", path)
	}
	return infos, nil
}
