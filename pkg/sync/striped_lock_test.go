package sync

import (
	"fmt"
	base "sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripedLock_HappyPath(t *testing.T) {
	workerCount := 256
	operationCount := 1000

	l := NewStripedLock(4)

	var workerWg base.WaitGroup
	startChan := make(chan struct{})
	data := make([]int, workerCount)

	for i := 0; i < workerCount; i++ {
		workerWg.Add(1)

		go func(workerID int) {
			defer workerWg.Done()

			var opWg base.WaitGroup
			key := []byte(fmt.Sprintf("worker%d", workerID))
			for j := 0; j < operationCount; j++ {
				opWg.Add(1)

				go func() {
					defer opWg.Done()

					<-startChan

					mu := l.Get(key)
					mu.Lock()
					data[workerID]++
					mu.Unlock()
				}()
			}
			opWg.Wait()
		}(i)
	}

	close(startChan)
	workerWg.Wait()

	for _, val := range data {
		assert.EqualValues(t, operationCount, val)
	}
}

func TestStripedLock_LockKeys(t *testing.T) {
	workerCount := 64
	operationCount := 200

	l := NewStripedLock(8)

	keys := make([][]byte, 16)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("account%d", i))
	}

	// Every worker moves a unit between two keys, chosen so that workers
	// overlap in opposite orders.
	balances := make([]int, len(keys))
	for i := range balances {
		balances[i] = 100
	}

	var wg base.WaitGroup
	startChan := make(chan struct{})
	for i := 0; i < workerCount; i++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			<-startChan

			for j := 0; j < operationCount; j++ {
				from := (workerID + j) % len(keys)
				to := (workerID*7 + j + 1) % len(keys)
				if from == to {
					continue
				}

				unlock := l.LockKeys([][]byte{keys[to], keys[from]}, [][]byte{keys[0]})
				balances[from]--
				balances[to]++
				unlock()
			}
		}(i)
	}

	close(startChan)
	wg.Wait()

	var total int
	for _, balance := range balances {
		total += balance
	}
	assert.Equal(t, 100*len(keys), total)
}

func TestStripedLock_LockKeysSharedStripe(t *testing.T) {
	l := NewStripedLock(1)

	// The same stripe requested for reading and writing is locked once, exclusively
	unlock := l.LockKeys([][]byte{[]byte("a")}, [][]byte{[]byte("b"), []byte("a")})
	assert.False(t, l.locks[0].TryRLock())
	unlock()

	assert.True(t, l.locks[0].TryLock())
	l.locks[0].Unlock()

	// Read only key sets share the lock
	unlock1 := l.LockKeys(nil, [][]byte{[]byte("a")})
	unlock2 := l.LockKeys(nil, [][]byte{[]byte("b")})
	assert.False(t, l.locks[0].TryLock())
	unlock1()
	unlock2()
	assert.True(t, l.locks[0].TryLock())
	l.locks[0].Unlock()
}
