/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package acceptor_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github/sabouaram/someip-local/acceptor"
	libptc "github/sabouaram/someip-local/network/protocol"
	sckcfg "github/sabouaram/someip-local/socket/config"
)

var _ = Describe("Acceptor", func() {
	It("binds an ephemeral TCP port and accepts a connection", func() {
		var a acceptor.Acceptor
		err := a.Init(sckcfg.Server{Network: libptc.NetworkTCP, Address: "127.0.0.1:0"})
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		port := a.GetLocalPort()
		Expect(port).To(BeNumerically(">", 0))

		var accepted int32
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			_ = a.AsyncAccept(ctx, func() uint32 { return 7 }, func(conn net.Conn, lc uint32) {
				atomic.AddInt32(&accepted, 1)
				Expect(lc).To(Equal(uint32(7)))
				_ = conn.Close()
			})
		}()

		cnx, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		Expect(err).NotTo(HaveOccurred())
		defer cnx.Close()

		Eventually(func() int32 { return atomic.LoadInt32(&accepted) }, time.Second, time.Millisecond).Should(Equal(int32(1)))
	})

	It("returns 0 for the local port of a Unix-domain listener", func() {
		if runtime.GOOS == "windows" {
			Skip("unix domain sockets not exercised on windows")
		}

		dir, err := os.MkdirTemp("", "acceptor-uds")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		sockPath := filepath.Join(dir, "local.sock")

		var a acceptor.Acceptor
		err = a.Init(sckcfg.Server{Network: libptc.NetworkUnix, Address: sockPath, PermFile: 0660})
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		Expect(a.GetLocalPort()).To(Equal(0))

		info, err := os.Stat(sockPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0660)))
	})

	It("unlinks a stale socket file left behind by a prior run", func() {
		if runtime.GOOS == "windows" {
			Skip("unix domain sockets not exercised on windows")
		}

		dir, err := os.MkdirTemp("", "acceptor-stale")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		sockPath := filepath.Join(dir, "stale.sock")
		Expect(os.WriteFile(sockPath, []byte("leftover"), 0644)).To(Succeed())

		var a acceptor.Acceptor
		err = a.Init(sckcfg.Server{Network: libptc.NetworkUnix, Address: sockPath})
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()
	})

	It("stops AsyncAccept silently once Close is called", func() {
		var a acceptor.Acceptor
		err := a.Init(sckcfg.Server{Network: libptc.NetworkTCP, Address: "127.0.0.1:0"})
		Expect(err).NotTo(HaveOccurred())

		done := make(chan error, 1)
		go func() {
			done <- a.AsyncAccept(context.Background(), nil, func(conn net.Conn, lc uint32) {
				_ = conn.Close()
			})
		}()

		Expect(a.Close()).NotTo(HaveOccurred())

		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("stops AsyncAccept when its context is cancelled via Cancel", func() {
		var a acceptor.Acceptor
		err := a.Init(sckcfg.Server{Network: libptc.NetworkTCP, Address: "127.0.0.1:0"})
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- a.AsyncAccept(ctx, nil, func(conn net.Conn, lc uint32) {
				_ = conn.Close()
			})
		}()

		cancel()

		Eventually(done, time.Second).Should(Receive(BeNil()))
	})
})
