package utils

func Map[T any, R any](a []T, mapper func(T) R) []R {
	res := make([]R, len(a))
	for i, v := range a {
		res[i] = mapper(v)
	}
	return res
}
