package diff3

import (
	"fmt"
	"testing"
)

func BenchmarkMerge(b *testing.B) {
	for _, n := range []int{50, 1000, 10000} {
		base := numberedLines(n)
		clean := [2][]byte{replaceLine(base, n/10, "ours"), replaceLine(base, n-n/10, "theirs")}
		conflict := [2][]byte{replaceLine(base, n/2, "ours"), replaceLine(base, n/2, "theirs")}

		b.Run(fmt.Sprintf("clean/%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(base)))
			for i := 0; i < b.N; i++ {
				if Merge(base, clean[0], clean[1]).HasConflicts {
					b.Fatal("unexpected conflict")
				}
			}
		})
		b.Run(fmt.Sprintf("conflict/%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(base)))
			for i := 0; i < b.N; i++ {
				if !Merge(base, conflict[0], conflict[1]).HasConflicts {
					b.Fatal("expected a conflict")
				}
			}
		})
	}
}
