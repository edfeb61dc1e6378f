package buffers

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Arrangement tags what a View projects out of its base buffer, so that typed
// accessors are a checked projection instead of raw pointer arithmetic.
type Arrangement int8

const (
	// FlatArrangement is a plain run of elements.
	FlatArrangement Arrangement = iota

	// KeysArrangement marks a view over one lookup's span of raw keys.
	KeysArrangement

	// BucketRangeArrangement marks a view over one lookup's bucket-range offsets.
	BucketRangeArrangement
)

func (a Arrangement) String() string {
	switch a {
	case FlatArrangement:
		return "Flat"
	case KeysArrangement:
		return "Keys"
	case BucketRangeArrangement:
		return "BucketRange"
	}
	return fmt.Sprintf("Arrangement(%d)", a)
}

// View is a tagged projection over a Buffer: base storage, an element offset,
// a logical length, the stride (in elements) between consecutive entries, and
// the arrangement tag saying what the entries mean.
type View struct {
	Base   *Buffer
	Offset int
	Len    int
	Stride int
	Tag    Arrangement
}

// NewView creates a contiguous view of length n starting at element offset.
func NewView(base *Buffer, offset, n int, tag Arrangement) View {
	v := View{Base: base, Offset: offset, Len: n, Stride: 1, Tag: tag}
	v.checkBounds()
	return v
}

func (v View) checkBounds() {
	if v.Base == nil {
		exceptions.Panicf("view %s has no base buffer", v.Tag)
	}
	if v.Len < 0 || v.Offset < 0 || v.Stride <= 0 {
		exceptions.Panicf("view %s has invalid geometry: offset=%d, len=%d, stride=%d",
			v.Tag, v.Offset, v.Len, v.Stride)
	}
	if v.Len > 0 {
		last := v.Offset + (v.Len-1)*v.Stride
		if last >= v.Base.NumElements() {
			exceptions.Panicf("view %s out of bounds: last element %d, base %s holds %d",
				v.Tag, last, v.Base, v.Base.NumElements())
		}
	}
}

func (v View) element(i int) int {
	if i < 0 || i >= v.Len {
		exceptions.Panicf("view %s index %d out of range [0, %d)", v.Tag, i, v.Len)
	}
	return v.Offset + i*v.Stride
}

// IntAt returns entry i of an integer-typed view, widened to int64.
// It panics on an out-of-range index or a non-integer base dtype.
func (v View) IntAt(i int) int64 {
	e := v.element(i)
	switch v.Base.DType() {
	case dtypes.S32:
		return int64(v.Base.Int32s()[e])
	case dtypes.S64:
		return v.Base.Int64s()[e]
	case dtypes.U32:
		return int64(v.Base.Uint32s()[e])
	case dtypes.U64:
		return int64(v.Base.Uint64s()[e])
	}
	exceptions.Panicf("view %s: IntAt not supported for dtype %s", v.Tag, v.Base.DType())
	return 0
}

// SetIntAt stores value into entry i of an integer-typed view.
func (v View) SetIntAt(i int, value int64) {
	e := v.element(i)
	switch v.Base.DType() {
	case dtypes.S32:
		v.Base.Int32s()[e] = int32(value)
	case dtypes.S64:
		v.Base.Int64s()[e] = value
	case dtypes.U32:
		v.Base.Uint32s()[e] = uint32(value)
	case dtypes.U64:
		v.Base.Uint64s()[e] = uint64(value)
	default:
		exceptions.Panicf("view %s: SetIntAt not supported for dtype %s", v.Tag, v.Base.DType())
	}
}

// String implements fmt.Stringer.
func (v View) String() string {
	return fmt.Sprintf("View(%s, offset=%d, len=%d, stride=%d, base=%s)",
		v.Tag, v.Offset, v.Len, v.Stride, v.Base)
}
