// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

//go:build integration

package credentials_test

import (
	"net/http"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/credgate/credgate/internal/auth"
)

const annSignup = `{"fullName":"Ann","email":"ann@x.io","password":"secret1"}`

var _ = Describe("Credential flows over HTTP", func() {
	BeforeEach(func() {
		env.resetDatabase()
	})

	Describe("signup and session", func() {
		It("issues a session cookie that authenticates later requests", func() {
			ann := newBrowser()

			signup := ann.send(http.MethodPost, "/api/auth/signup", annSignup)
			Expect(signup.status).To(Equal(http.StatusCreated))
			Expect(signup.body).To(HaveKeyWithValue("email", "ann@x.io"))
			Expect(signup.body).NotTo(HaveKey("password"))
			Expect(signup.sessionCookie()).NotTo(BeNil())

			check := ann.send(http.MethodGet, "/api/auth/check", "")
			Expect(check.status).To(Equal(http.StatusOK))
			Expect(check.body).To(HaveKeyWithValue("_id", signup.body["_id"]))
		})

		It("rejects a second account for the same email", func() {
			Expect(newBrowser().send(http.MethodPost, "/api/auth/signup", annSignup).status).
				To(Equal(http.StatusCreated))

			dup := newBrowser().send(http.MethodPost, "/api/auth/signup", annSignup)
			Expect(dup.status).To(Equal(http.StatusBadRequest))
			Expect(dup.body).To(Equal(map[string]any{"message": "Email already exists"}))
		})

		It("lets exactly one of many concurrent signups win", func() {
			const attempts = 6
			statuses := make(chan int, attempts)
			var wg sync.WaitGroup
			for range attempts {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					statuses <- newBrowser().send(http.MethodPost, "/api/auth/signup", annSignup).status
				}()
			}
			wg.Wait()
			close(statuses)

			created := 0
			for status := range statuses {
				if status == http.StatusCreated {
					created++
				} else {
					Expect(status).To(Equal(http.StatusBadRequest))
				}
			}
			Expect(created).To(Equal(1))
		})

		It("stops authenticating after logout", func() {
			ann := newBrowser()
			ann.send(http.MethodPost, "/api/auth/signup", annSignup)

			logout := ann.send(http.MethodPost, "/api/auth/logout", "")
			Expect(logout.status).To(Equal(http.StatusOK))
			Expect(logout.body).To(HaveKeyWithValue("message", auth.MsgLoggedOut))

			check := ann.send(http.MethodGet, "/api/auth/check", "")
			Expect(check.status).To(Equal(http.StatusUnauthorized))
			Expect(check.body).To(HaveKeyWithValue("message", "Unauthorized - No Token Provided"))
		})
	})

	Describe("password reset", func() {
		var ann *browser

		BeforeEach(func() {
			ann = newBrowser()
			Expect(ann.send(http.MethodPost, "/api/auth/signup", annSignup).status).To(Equal(http.StatusCreated))
		})

		tokenFromOutbox := func() string {
			notice, ok := env.outbox.last()
			Expect(ok).To(BeTrue())
			Expect(notice.To).To(Equal("ann@x.io"))
			Expect(notice.ResetURL).To(HavePrefix("https://chat.example/reset-password/"))
			return strings.TrimPrefix(notice.ResetURL, "https://chat.example/reset-password/")
		}

		It("completes the forgot, reset and login scenario", func() {
			forgot := ann.send(http.MethodPost, "/api/auth/forgot-password", `{"email":"ann@x.io"}`)
			Expect(forgot.status).To(Equal(http.StatusOK))
			Expect(forgot.body).To(Equal(map[string]any{"message": auth.MsgResetRequested}))
			token := tokenFromOutbox()

			reset := ann.send(http.MethodPost, "/api/auth/reset-password",
				`{"token":"`+token+`","password":"newpass1"}`)
			Expect(reset.status).To(Equal(http.StatusOK))
			Expect(reset.body).To(HaveKeyWithValue("message", auth.MsgPasswordReset))

			again := ann.send(http.MethodPost, "/api/auth/reset-password",
				`{"token":"`+token+`","password":"another1"}`)
			Expect(again.status).To(Equal(http.StatusBadRequest))
			Expect(again.body).To(HaveKeyWithValue("message", "Invalid or expired reset token"))

			Expect(ann.send(http.MethodPost, "/api/auth/login", `{"email":"ann@x.io","password":"secret1"}`).status).
				To(Equal(http.StatusBadRequest))
			login := ann.send(http.MethodPost, "/api/auth/login", `{"email":"ann@x.io","password":"newpass1"}`)
			Expect(login.status).To(Equal(http.StatusOK))
			Expect(login.sessionCookie()).NotTo(BeNil())
		})

		It("answers unknown emails exactly like known ones", func() {
			known := ann.send(http.MethodPost, "/api/auth/forgot-password", `{"email":"ann@x.io"}`)
			unknown := ann.send(http.MethodPost, "/api/auth/forgot-password", `{"email":"nobody@x.io"}`)
			Expect(unknown.status).To(Equal(known.status))
			Expect(unknown.body).To(Equal(known.body))
		})

		It("invalidates the earlier token when a new one is requested", func() {
			ann.send(http.MethodPost, "/api/auth/forgot-password", `{"email":"ann@x.io"}`)
			first := tokenFromOutbox()
			ann.send(http.MethodPost, "/api/auth/forgot-password", `{"email":"ann@x.io"}`)
			second := tokenFromOutbox()
			Expect(second).NotTo(Equal(first))

			stale := ann.send(http.MethodPost, "/api/auth/reset-password", `{"token":"`+first+`","password":"newpass1"}`)
			Expect(stale.status).To(Equal(http.StatusBadRequest))

			fresh := ann.send(http.MethodPost, "/api/auth/reset-password", `{"token":"`+second+`","password":"newpass1"}`)
			Expect(fresh.status).To(Equal(http.StatusOK))
		})

		It("rejects an expired token and purges it", func() {
			ann.send(http.MethodPost, "/api/auth/forgot-password", `{"email":"ann@x.io"}`)
			token := tokenFromOutbox()

			env.clock.advance(auth.ResetTokenExpiry + time.Minute)
			DeferCleanup(func() { env.clock.advance(-(auth.ResetTokenExpiry + time.Minute)) })

			expired := ann.send(http.MethodPost, "/api/auth/reset-password", `{"token":"`+token+`","password":"newpass1"}`)
			Expect(expired.status).To(Equal(http.StatusBadRequest))
			Expect(expired.body).To(HaveKeyWithValue("message", "Invalid or expired reset token"))

			purged, err := env.resets.PurgeExpired(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(purged).To(Equal(int64(1)))
		})
	})
})
