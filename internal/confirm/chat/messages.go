package chat

import (
	"fmt"
	"strings"
	"time"
)

const otpPlaceholder = "YOUR_ONE_TIME_PASSWORD"

func msgRequest(code string, ttl time.Duration) string {
	return fmt.Sprintf("This command requires confirmation within %s. To confirm, send the command \"confirm %s\"", ttl, code)
}

func msgTwoFactorRequest(code string, ttl time.Duration) string {
	return fmt.Sprintf("This command requires two-factor confirmation within %s. To confirm, send the command \"confirm %s %s\"", ttl, code, otpPlaceholder)
}

const msgRequiresTwoFactor = "This command requires two-factor confirmation, but you have not set up two-factor authentication. " +
	"Send \"confirm 2fa enroll <email>\" to enroll."

func msgInvalidCode(code string) string {
	return fmt.Sprintf("%s is not a valid confirmation code. It may have expired or already been used.", code)
}

func msgOtherUserRequired(code string) string {
	return fmt.Sprintf("%s was not confirmed. A different user must confirm this command.", code)
}

func msgUserInGroupRequired(code string, groups []string) string {
	return fmt.Sprintf("%s was not confirmed. It must be confirmed by a member of one of these groups: %s", code, strings.Join(groups, ", "))
}

func msgOTPRequired(code string) string {
	return fmt.Sprintf("%s requires a one-time password in addition to the command code. Send \"confirm %s %s\"", code, code, otpPlaceholder)
}

func msgNotEnrolled(code string) string {
	return fmt.Sprintf("%s requires two-factor confirmation. Please enroll in two-factor confirmation with \"confirm 2fa enroll <email>\" first.", code)
}

func msgIncorrectOTP(code string) string {
	return fmt.Sprintf("The one-time password you have provided is not correct. %s was not confirmed.", code)
}

func msgNotConfirmed(code string) string {
	return fmt.Sprintf("%s could not be checked right now and was not confirmed. Please try again.", code)
}

func msgCommandFailed(code string) string {
	return fmt.Sprintf("%s was confirmed, but the command failed.", code)
}

func msgEnrolled(address string) string {
	return fmt.Sprintf("You are now enrolled in two-factor confirmation. Your secret has been sent to %s.", address)
}

const msgAlreadyEnrolled = "You are already enrolled in two-factor confirmation, so you cannot re-enroll. Remove your enrollment first."

func msgInvalidAddress(address string) string {
	return fmt.Sprintf("%s does not appear valid.", address)
}

func msgDeliveryFailed(address string, err error) string {
	return fmt.Sprintf("Could not send email to %s: %v", address, err)
}

const msgNotPrivileged = "Sorry, this action can only be performed by a confirmation administrator."

const msgRemovedSelf = "You will no longer be prompted for a one-time password."

func msgRemovedOther(name string) string {
	return fmt.Sprintf("%s will no longer be prompted for a one-time password.", name)
}

func msgNoSuchUser(query string) string {
	return fmt.Sprintf("No such user: %s", query)
}

const msgInternalError = "Sorry, something went wrong. Please try again later."
