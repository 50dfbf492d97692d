package promexport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeSnapshotter struct{ size int }

func (f fakeSnapshotter) Size() int { return f.size }

func TestCollector_ExposesPoolSize(t *testing.T) {
	c := New(fakeSnapshotter{size: 3}, nil)
	count := testutil.CollectAndCount(c, "ioscale_pool_size")
	assert.Equal(t, 1, count, "no controller wired means only pool_size is emitted")
}

func TestCollector_DescribeDoesNotPanic(t *testing.T) {
	c := New(fakeSnapshotter{size: 1}, nil)
	ch := make(chan *prometheus.Desc, 8)
	c.Describe(ch)
	close(ch)
	var n int
	for range ch {
		n++
	}
	assert.Equal(t, 4, n)
}
