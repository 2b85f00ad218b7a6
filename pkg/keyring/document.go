package keyring

import (
	"github.com/beevik/etree"
)

// KeyDocument is one entry in the host application's key ring: an XML
// document carrying key material, metadata, and an activation window.
// Repositories treat the contents as opaque. Only the root element's "id"
// attribute is read, to derive a record name when the caller supplies no
// friendly name.
type KeyDocument struct {
	doc *etree.Document
}

// ParseKeyDocument parses the text form of a key-ring entry.
//
// Input that is not well-formed XML, or that parses to a document without a
// root element, yields a MalformedDocumentError. Repositories use this to
// decide whether a fetched record belongs in the result set.
func ParseKeyDocument(text string) (*KeyDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil, MalformedDocumentError{Err: err}
	}
	if doc.Root() == nil {
		return nil, MalformedDocumentError{Message: "document has no root element"}
	}
	return &KeyDocument{doc: doc}, nil
}

// NewKeyDocument wraps an element as a key document. The element becomes the
// document root; the caller must not mutate it afterwards.
func NewKeyDocument(root *etree.Element) *KeyDocument {
	doc := etree.NewDocument()
	doc.SetRoot(root)
	return &KeyDocument{doc: doc}
}

// ID returns the root element's "id" attribute, or "" when absent.
func (k *KeyDocument) ID() string {
	return k.doc.Root().SelectAttrValue("id", "")
}

// Root returns the document's root element.
func (k *KeyDocument) Root() *etree.Element {
	return k.doc.Root()
}

// Serialize returns the document's text form, the exact value persisted to a
// secret store.
func (k *KeyDocument) Serialize() (string, error) {
	return k.doc.WriteToString()
}

// Equal reports structural equality by comparing canonical serializations.
func (k *KeyDocument) Equal(other *KeyDocument) bool {
	if other == nil {
		return false
	}
	a, errA := k.Serialize()
	b, errB := other.Serialize()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}
