package extensions

import "fmt"

// Ext0002 is the registered name for the flat direct storage layout.
const Ext0002 = "0002-flat-direct-storage-layout"

// LayoutFlatDirect implements 0002-flat-direct-storage-layout: object ids are
// used directly as object root directory names.
type LayoutFlatDirect struct {
	ExtensionName string `json:"extensionName"`
}

var _ Layout = (*LayoutFlatDirect)(nil)

func NewLayoutFlatDirect() *LayoutFlatDirect {
	return &LayoutFlatDirect{
		ExtensionName: Ext0002,
	}
}

func (l *LayoutFlatDirect) Name() string {
	return Ext0002
}

func (l *LayoutFlatDirect) NewFunc() (LayoutFunc, error) {
	if l.ExtensionName != l.Name() {
		return nil, fmt.Errorf("%s: unexpected extensionName %s", l.Name(), l.ExtensionName)
	}
	return func(id string) (string, error) {
		switch {
		case id == "", id == ".", id == "..":
			return "", fmt.Errorf("%w: %q", ErrLayoutID, id)
		case len(id) > 255:
			return "", fmt.Errorf("%w: %q is longer than 255 bytes", ErrLayoutID, id)
		}
		for i := 0; i < len(id); i++ {
			if id[i] == '/' {
				return "", fmt.Errorf("%w: %q includes the path separator", ErrLayoutID, id)
			}
		}
		return id, nil
	}, nil
}
