package storagesync

// Writer is the write side of the durable store. Implementations debounce Set
// and write SetImmediate synchronously; neither reports errors.
type Writer interface {
	Set(key string, value []byte)
	SetImmediate(key string, value []byte)
}
