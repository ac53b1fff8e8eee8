package flow

// User-facing message templates for the resume conversation.
const (
	welcomeMessage = "👋 Welcome to CampusPe! Type *resume* to build a tailored resume, or *help* to see what I can do."

	helpMessage = "ℹ️ Here's how this works:\n" +
		"1. Type *resume* to start building a tailored resume\n" +
		"2. Send me your email address\n" +
		"3. Paste the job description you're applying for\n" +
		"4. I'll generate a polished PDF and send you the download link\n\n" +
		"Type *cancel* at any time to stop."

	cancelledMessage = "✅ Your resume request has been cancelled. Type *resume* whenever you want to start again."

	// emailPromptMessage takes the user's display name (or "there").
	emailPromptMessage = "📝 Hi %s! Let's build your resume.\n\nFirst, what's your email address?"

	// invalidEmailMessage takes the current attempt number and the limit.
	invalidEmailMessage = "⚠️ That doesn't look like a valid email address. Please send it like *name@example.com* (attempt %d/%d)."

	jobDescriptionPromptMessage = "👍 Got it! Now paste the *job description* you're applying for (at least 50 characters). I'll tailor your resume to it."

	jobDescriptionPromptKnownMessage = "🎓 Great, found your CampusPe profile! Now paste the *job description* you're applying for (at least 50 characters). I'll tailor your resume to it."

	// shortJobDescriptionMessage takes the minimum length, the attempt number, and the limit.
	shortJobDescriptionMessage = "⚠️ That job description is too short. Please paste at least %d characters so I can tailor your resume properly (attempt %d/%d)."

	attemptsExhaustedMessage = "😕 Too many invalid attempts, so I've reset this request. Type *resume* to start over."

	processingAckMessage = "⏳ Building your tailored resume now. This usually takes under a minute, hang tight!"

	// processingAckRoleMessage takes the extracted target role.
	processingAckRoleMessage = "⏳ Building your tailored resume for the *%s* role now. This usually takes under a minute, hang tight!"

	processingNoticeMessage = "⏳ Still working on your resume! I'll send the download link here as soon as it's ready."

	completedNoticeMessage = "📄 Your resume is ready, check the download link above. Type *resume* to build another one."

	// successMessage takes the file name, formatted size, and download URL.
	successMessage = "🎉 Your resume is ready!\n\n📄 File: %s (%s)\n⬇️ Download: %s\n\nGood luck with your application!"

	// failureMessage takes the reported failure reason.
	failureMessage = "❌ Sorry, resume generation failed: %s\n\nPlease check that your email is registered on CampusPe and type *resume* to try again."
)
