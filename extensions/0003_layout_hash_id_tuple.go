package extensions

import (
	"fmt"
	"strings"

	"github.com/archivekit/ocfl/digest"
)

const (
	// Ext0003 is the registered name for the hash-and-id n-tuple layout.
	Ext0003  = "0003-hash-and-id-n-tuple-storage-layout"
	lowerhex = "0123456789abcdef"
)

// LayoutHashIDTuple implements 0003-hash-and-id-n-tuple-storage-layout:
// n-tuples from the digest of the object id form a directory tree with the
// percent-encoded id as the leaf.
type LayoutHashIDTuple struct {
	ExtensionName   string `json:"extensionName"`
	DigestAlgorithm string `json:"digestAlgorithm"`
	TupleSize       int    `json:"tupleSize"`
	TupleNum        int    `json:"numberOfTuples"`
}

var _ Layout = (*LayoutHashIDTuple)(nil)

func NewLayoutHashIDTuple() *LayoutHashIDTuple {
	return &LayoutHashIDTuple{
		ExtensionName:   Ext0003,
		DigestAlgorithm: digest.SHA256.ID(),
		TupleSize:       3,
		TupleNum:        3,
	}
}

func (l *LayoutHashIDTuple) Name() string {
	return Ext0003
}

func (l *LayoutHashIDTuple) NewFunc() (LayoutFunc, error) {
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
		encID := idEncode(id)
		if len(encID) > 100 {
			encID = encID[:100] + "-" + hID
		}
		tuples[tupNum] = encID
		return strings.Join(tuples, "/"), nil
	}, nil
}

// idEncode percent-encodes every byte outside [a-zA-Z0-9_-], per the 0003
// extension spec.
func idEncode(in string) string {
	shouldEscape := func(c byte) bool {
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '-' || c == '_' {
			return false
		}
		return true
	}
	var numEscape int
	for i := 0; i < len(in); i++ {
		if shouldEscape(in[i]) {
			numEscape++
		}
	}
	if numEscape == 0 {
		return in
	}
	out := make([]byte, len(in)+2*numEscape)
	j := 0
	for i := 0; i < len(in); i++ {
		if shouldEscape(in[i]) {
			out[j] = '%'
			out[j+1] = lowerhex[in[i]>>4]
			out[j+2] = lowerhex[in[i]&15]
			j += 3
			continue
		}
		out[j] = in[i]
		j++
	}
	return string(out)
}
