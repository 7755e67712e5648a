package rate

import "fmt"

const keyPrefix = "secureauth:rate"

func signinEmailKey(email string) string {
	return fmt.Sprintf("%s:signin:email:%s", keyPrefix, email)
}

func signinIPKey(ip string) string {
	return fmt.Sprintf("%s:signin:ip:%s", keyPrefix, ip)
}

func resetEmailKey(email string) string {
	return fmt.Sprintf("%s:reset:email:%s", keyPrefix, email)
}
