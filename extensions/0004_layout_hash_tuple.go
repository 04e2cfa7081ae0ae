package extensions

import (
	"fmt"
	"strings"

	"github.com/archivekit/ocfl/digest"
)

// Ext0004 is the registered name for the hashed n-tuple storage layout.
const Ext0004 = "0004-hashed-n-tuple-storage-layout"

// LayoutHashTuple implements 0004-hashed-n-tuple-storage-layout: object roots
// are directory trees built entirely from n-tuples of the digest of the
// object id.
type LayoutHashTuple struct {
	ExtensionName   string `json:"extensionName"`
	DigestAlgorithm string `json:"digestAlgorithm"`
	TupleSize       int    `json:"tupleSize"`
	TupleNum        int    `json:"numberOfTuples"`
	Short           bool   `json:"shortObjectRoot"`
}

var _ Layout = (*LayoutHashTuple)(nil)

func NewLayoutHashTuple() *LayoutHashTuple {
	return &LayoutHashTuple{
		ExtensionName:   Ext0004,
		DigestAlgorithm: digest.SHA256.ID(),
		TupleSize:       3,
		TupleNum:        3,
		Short:           false,
	}
}

func (l *LayoutHashTuple) Name() string {
	return Ext0004
}

func (l *LayoutHashTuple) NewFunc() (LayoutFunc, error) {
	if l.ExtensionName != l.Name() {
		return nil, fmt.Errorf("%s: unexpected extensionName %s", l.Name(), l.ExtensionName)
	}
	alg, err := digest.DefaultRegistry().Get(l.DigestAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	tupSize, tupNum := l.TupleSize, l.TupleNum
	if tupSize == 0 && tupNum != 0 {
		return nil, fmt.Errorf("%s: numberOfTuples must be 0", l.Name())
	}
	if tupNum == 0 && tupSize != 0 {
		return nil, fmt.Errorf("%s: tupleSize must be 0", l.Name())
	}
	return func(id string) (string, error) {
		if id == "" {
			return "", fmt.Errorf("%w: empty id", ErrLayoutID)
		}
		d := alg.Digester()
		d.Write([]byte(id))
		hID := d.String()
		if tupSize*tupNum > len(hID) {
			return "", fmt.Errorf("%s: product of tupleSize and numberOfTuples is more than the hash length", l.Name())
		}
		tuples := make([]string, tupNum+1)
		for i := 0; i < tupNum; i++ {
			tuples[i] = hID[i*tupSize : (i+1)*tupSize]
		}
		if l.Short {
			tuples[tupNum] = hID[tupNum*tupSize:]
		} else {
			tuples[tupNum] = hID
		}
		return strings.Join(tuples, "/"), nil
	}, nil
}
