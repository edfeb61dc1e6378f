// Package utils holds small generic helpers shared across the module.
package utils

// Set implements a set of elements of any comparable type.
type Set[T comparable] map[T]struct{}

// MakeSet returns an empty Set of the given type with capacity reserved for size elements.
func MakeSet[T comparable](size int) Set[T] {
	return make(Set[T], size)
}

// SetWith returns a Set with the given elements inserted.
func SetWith[T comparable](elements ...T) Set[T] {
	s := MakeSet[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns true if the set contains the given element.
func (s Set[T]) Has(element T) bool {
	_, found := s[element]
	return found
}

// Insert adds the given elements to the set.
func (s Set[T]) Insert(elements ...T) {
	for _, element := range elements {
		s[element] = struct{}{}
	}
}

// Sub returns a new set with the elements of s that are not in other.
func (s Set[T]) Sub(other Set[T]) Set[T] {
	result := MakeSet[T](len(s))
	for element := range s {
		if !other.Has(element) {
			result.Insert(element)
		}
	}
	return result
}

// Equal returns whether both sets hold exactly the same elements.
func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for element := range s {
		if !other.Has(element) {
			return false
		}
	}
	return true
}
