package bboltx

import "go.etcd.io/bbolt"

// BucketParent is a transaction or a bucket, either of which may contain
// buckets.
type BucketParent interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
	Bucket(name []byte) *bbolt.Bucket
}

var (
	_ BucketParent = (*bbolt.Tx)(nil)
	_ BucketParent = (*bbolt.Bucket)(nil)
)

// CreateBucketIfNotExists returns the bucket at path, creating it and any of
// its parents as necessary.
func CreateBucketIfNotExists(p BucketParent, path ...[]byte) *bbolt.Bucket {
	mustHavePath(path)

	for _, name := range path {
		b, err := p.CreateBucketIfNotExists(name)
		Must(err)
		p = b
	}

	return p.(*bbolt.Bucket)
}

// Bucket returns the bucket at path, or nil if it or any of its parents does
// not exist.
func Bucket(p BucketParent, path ...[]byte) *bbolt.Bucket {
	mustHavePath(path)

	var b *bbolt.Bucket
	for _, name := range path {
		if b = p.Bucket(name); b == nil {
			return nil
		}
		p = b
	}

	return b
}

// Put sets key k of bucket b to v.
func Put(b *bbolt.Bucket, k, v []byte) {
	Must(b.Put(k, v))
}

// Delete removes key k from bucket b.
func Delete(b *bbolt.Bucket, k []byte) {
	Must(b.Delete(k))
}

func mustHavePath(path [][]byte) {
	if len(path) == 0 {
		panic("bucket path must not be empty")
	}
}
